package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"quizlive/internal/app"
	"quizlive/internal/domain"
	infrapg "quizlive/internal/infra/postgres"
	pgmigrations "quizlive/internal/infra/postgres/migrations"
	infraredis "quizlive/internal/infra/redis"
)

func TestSessionLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	quizRepo := infraredis.NewQuizRepository(redisClient, infrapg.NewQuizLoader(pool), 5*time.Minute)
	presence := infraredis.NewPresence(redisClient, 5*time.Minute)
	sink := infrapg.NewResultSink(pool)

	cfg := app.DefaultConfig()
	cfg.Retention = time.Minute
	registry := app.NewRegistry(quizRepo, sink, presence, cfg)

	session, err := registry.Ensure(ctx, "", "quiz-1")
	if err != nil {
		t.Fatalf("ensure session: %v", err)
	}
	code := session.Code()

	if n, err := redisClient.Exists(ctx, "session:live:"+code).Result(); err != nil || n != 1 {
		t.Fatalf("expected liveness marker for %s, exists=%d err=%v", code, n, err)
	}

	host := newRecordingClient("conn-host")
	player := newRecordingClient("conn-player")
	if err := session.Join(host, domain.Identity{ID: "u-host"}, "Helen", false); err != nil {
		t.Fatalf("host join: %v", err)
	}
	if err := session.Join(player, domain.Identity{ID: "u-player"}, "Alice", false); err != nil {
		t.Fatalf("player join: %v", err)
	}

	if err := session.StartQuestion("u-host"); err != nil {
		t.Fatalf("start question: %v", err)
	}
	if err := session.SubmitAnswer("u-player", "q1", domain.AnswerValue{OptionID: "o2"}, time.Now().UnixMilli()); err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	if err := session.ForceReveal("u-host"); err != nil {
		t.Fatalf("force reveal: %v", err)
	}
	if err := session.AdvanceNext("u-host"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	finished := player.last(domain.EventSessionFinished)
	if finished == nil {
		t.Fatalf("expected session_finished event, got %v", player.types())
	}
	standings := finished.Payload.(domain.SessionFinishedPayload).Standings
	if len(standings) != 1 || standings[0].ParticipantID != "u-player" || standings[0].Score <= 0 {
		t.Fatalf("unexpected standings: %+v", standings)
	}

	// The result write is fire-and-forget; poll until the row lands.
	deadline := time.Now().Add(10 * time.Second)
	for {
		var count int
		if err := pool.QueryRow(ctx,
			`SELECT count(*) FROM session_results WHERE code=$1 AND quiz_id=$2`, code, "quiz-1",
		).Scan(&count); err != nil {
			t.Fatalf("count results: %v", err)
		}
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session result row never written")
		}
		time.Sleep(50 * time.Millisecond)
	}

	var raw []byte
	if err := pool.QueryRow(ctx,
		`SELECT standings FROM session_results WHERE code=$1`, code,
	).Scan(&raw); err != nil {
		t.Fatalf("read standings: %v", err)
	}
	var persisted []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &persisted); err != nil {
		t.Fatalf("unmarshal standings: %v", err)
	}
	if len(persisted) != 1 || persisted[0].ParticipantID != "u-player" || persisted[0].Rank != 1 {
		t.Fatalf("unexpected persisted standings: %+v", persisted)
	}
}

func TestQuizSnapshotCachedInRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuiz(t, ctx, pgURL, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, infrapg.NewQuizLoader(pool), 5*time.Minute)

	quiz, err := quizRepo.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 1 || quiz.Questions[0].ID != "q1" {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
	if n, err := redisClient.Exists(ctx, "quiz:snapshot:quiz-1").Result(); err != nil || n != 1 {
		t.Fatalf("expected cached snapshot, exists=%d err=%v", n, err)
	}
}

// recordingClient collects every event delivered to one connection.
type recordingClient struct {
	id string

	mu     sync.Mutex
	events []domain.Event
}

func newRecordingClient(id string) *recordingClient {
	return &recordingClient{id: id}
}

func (c *recordingClient) ID() string { return c.id }

func (c *recordingClient) Send(ev domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

func (c *recordingClient) last(eventType string) *domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Type == eventType {
			ev := c.events[i]
			return &ev
		}
	}
	return nil
}

func (c *recordingClient) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuiz(t *testing.T, ctx context.Context, dsn string, quiz domain.Quiz) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				ID:     "q1",
				Type:   domain.QuestionSingleChoice,
				Prompt: "What is 2 + 2?",
				Options: []domain.Option{
					{ID: "o1", Text: "3"},
					{ID: "o2", Text: "4", Correct: true},
					{ID: "o3", Text: "5"},
				},
				TimeLimitMs: 30000,
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
