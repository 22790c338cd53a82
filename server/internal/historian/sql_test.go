package historian

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/plantqc/historian-bridge/pkg/types"
	"github.com/plantqc/historian-bridge/server/internal/config"
)

func newMock(t *testing.T) (Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLConn(db), mock
}

func TestSQLConn_HistoryCarriesRetrievalOptions(t *testing.T) {
	conn, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"DateTime", "StartDateTime", "Value"}).
		AddRow(t0.Add(time.Minute), t0, 7.01).
		AddRow(t0.Add(2*time.Minute), t0.Add(time.Minute), 7.03)
	mock.ExpectQuery(`(?s)FROM History\s+WHERE TagName = \$1.*wwRetrievalMode = 'Cyclic'.*wwCycleCount = \$4.*wwQualityRule = 'Extended'.*wwVersion = 'Latest'`).
		WithArgs(phTag.Name, sqlmock.AnyArg(), sqlmock.AnyArg(), 100).
		WillReturnRows(rows)

	got, err := conn.History(context.Background(), HistoryQuery{Tag: phTag, Start: t0, End: t0.Add(time.Hour), CycleCount: 100})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 || got[1].Value != 7.03 || !got[0].IntervalStart.Equal(t0) {
		t.Errorf("samples: got %+v", got)
	}
	if got[0].Quality != types.QualityGood || got[0].Tag != phTag {
		t.Errorf("sample[0] metadata: got %+v", got[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLConn_HistoryError(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`FROM History`).WillReturnError(errors.New("deadlock victim"))
	if _, err := conn.History(context.Background(), HistoryQuery{Tag: phTag, Start: t0, End: t0}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSQLConn_LatestNoRows(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`FROM Live`).WithArgs(tccTag.Name).
		WillReturnRows(sqlmock.NewRows([]string{"DateTime", "Value"}))

	_, ok, err := conn.Latest(context.Background(), tccTag)
	if err != nil || ok {
		t.Fatalf("Latest: ok=%v err=%v, want ok=false err=nil", ok, err)
	}
}

func TestSQLConn_Latest(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`FROM Live`).WithArgs(tccTag.Name).
		WillReturnRows(sqlmock.NewRows([]string{"DateTime", "Value"}).AddRow(t0, 0.48))

	s, ok, err := conn.Latest(context.Background(), tccTag)
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if s.Value != 0.48 || !s.DateTime.Equal(t0) {
		t.Errorf("sample: got %+v", s)
	}
}

func TestSQLConn_FlowRateJoin(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`FROM BatchIdLog`).WithArgs("B-1001").
		WillReturnRows(sqlmock.NewRows([]string{"BatchLogId"}).AddRow("LOG-77"))
	mock.ExpectQuery(`FROM MaterialInput q\s+JOIN ProcessVar t`).
		WithArgs("LOG-77", "TRANSFER", "CHARGE", "ACTUAL_QTY", "ACTUAL_TIME").
		WillReturnRows(sqlmock.NewRows([]string{"q", "t"}).AddRow(1200.0, 600.0))

	row, err := conn.FlowRate(context.Background(), FlowRateQuery{
		BatchID: "B-1001", Operation: "TRANSFER", Phase: "CHARGE",
		QtyParameter: "ACTUAL_QTY", TimeParameter: "ACTUAL_TIME",
	})
	if err != nil {
		t.Fatalf("FlowRate: %v", err)
	}
	if row == nil || row.BatchLogID != "LOG-77" || row.ActualQty != 1200 || row.ActualValue != 600 {
		t.Errorf("row: got %+v", row)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLConn_FlowRateUnknownBatch(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`FROM BatchIdLog`).WithArgs("B-404").
		WillReturnError(sql.ErrNoRows)

	row, err := conn.FlowRate(context.Background(), FlowRateQuery{BatchID: "B-404"})
	if err != nil || row != nil {
		t.Fatalf("FlowRate: got %v, %v; want nil, nil", row, err)
	}
}

func TestSQLConn_FlowRateNoJoinRows(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery(`FROM BatchIdLog`).
		WillReturnRows(sqlmock.NewRows([]string{"BatchLogId"}).AddRow("LOG-1"))
	mock.ExpectQuery(`FROM MaterialInput`).
		WillReturnRows(sqlmock.NewRows([]string{"q", "t"}))

	row, err := conn.FlowRate(context.Background(), FlowRateQuery{BatchID: "B-1"})
	if err != nil || row != nil {
		t.Fatalf("FlowRate: got %v, %v; want nil, nil", row, err)
	}
}

func TestDialer_MissingDSN(t *testing.T) {
	t.Setenv("TEST_HISTORIAN_DSN_UNSET", "")
	dial := Dialer(config.HistorianConfig{Driver: "pgx", DSNEnv: "TEST_HISTORIAN_DSN_UNSET", ConnectTimeout: time.Second})
	_, err := dial(context.Background())
	if !errors.Is(err, types.ErrConnectionUnavailable) {
		t.Fatalf("got %v, want ErrConnectionUnavailable", err)
	}
}

func TestDialer_UnknownDriver(t *testing.T) {
	t.Setenv("TEST_HISTORIAN_DSN", "whatever")
	dial := Dialer(config.HistorianConfig{Driver: "no-such-driver", DSNEnv: "TEST_HISTORIAN_DSN", ConnectTimeout: time.Second})
	if _, err := dial(context.Background()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestDialer_OpensAndPings(t *testing.T) {
	const dsn = "historian-dialer-test"
	db, _, err := sqlmock.NewWithDSN(dsn)
	if err != nil {
		t.Fatalf("sqlmock.NewWithDSN: %v", err)
	}
	defer db.Close()

	t.Setenv("TEST_HISTORIAN_DSN", dsn)
	dial := Dialer(config.HistorianConfig{Driver: "sqlmock", DSNEnv: "TEST_HISTORIAN_DSN", ConnectTimeout: time.Second})
	conn, err := dial(context.Background())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if conn.Simulated() {
		t.Error("dialed conn reports Simulated")
	}
}
