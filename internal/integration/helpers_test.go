//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"

	"github.com/couchcryptid/water-violation-explainer/internal/adapter/postgres"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("explainer-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial kafka")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "kafka controller")

	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial kafka controller")
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}), "create topic %s", topic)
}

// startPostgres runs PostgreSQL, creates the source tables and the
// explanations table, and returns an open connection.
func startPostgres(ctx context.Context, t *testing.T) *sql.DB {
	t.Helper()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("water"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "postgres connection string")

	db, err := postgres.Open(ctx, dsn)
	require.NoError(t, err, "open postgres")
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, sourceSchema)
	require.NoError(t, err, "create source tables")
	require.NoError(t, postgres.New(db, true).EnsureSchema(ctx))
	return db
}

// sourceSchema is the subset of the bulk loader's tables read by the selector.
const sourceSchema = `
CREATE TABLE public_water_systems (
    pwsid                    VARCHAR(9) PRIMARY KEY,
    pws_name                 VARCHAR(100),
    population_served_count  INTEGER,
    is_school_or_daycare_ind CHAR(1)
);

CREATE TABLE reference_codes (
    value_type        VARCHAR(40),
    value_code        VARCHAR(40),
    value_description VARCHAR(250),
    PRIMARY KEY (value_type, value_code)
);

CREATE TABLE geographic_areas (
    pwsid          VARCHAR(9),
    area_type_code VARCHAR(2),
    county_served  VARCHAR(40),
    city_served    VARCHAR(40)
);

CREATE TABLE violations_enforcement (
    submission_year_quarter  VARCHAR(7),
    pwsid                    VARCHAR(9),
    violation_id             VARCHAR(20),
    non_compl_per_begin_date DATE,
    non_compl_per_end_date   DATE,
    violation_code           VARCHAR(4),
    is_health_based_ind      CHAR(1),
    contaminant_code         VARCHAR(4),
    viol_measure             DOUBLE PRECISION,
    unit_of_measure          VARCHAR(9),
    federal_mcl              VARCHAR(31),
    state_mcl                DOUBLE PRECISION,
    violation_status         VARCHAR(11),
    public_notification_tier INTEGER,
    PRIMARY KEY (submission_year_quarter, pwsid, violation_id)
);
`
