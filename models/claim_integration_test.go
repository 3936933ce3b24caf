package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/draftforge/contentflow_backend/config"
	"github.com/draftforge/contentflow_backend/models"
	"github.com/draftforge/contentflow_backend/utils"
)

// Exercises the claim conditional UPDATE against a real MySQL: many
// concurrent movers of the same article into `generating` must produce
// exactly one affected row.
func TestTransitionArticleStatus_ConcurrentClaim_OneWinner(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "contentflow_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	ws, err := models.CreateWorkspace(ctx, &models.NewWorkspace{
		Name:  "Claim Test Co",
		Email: "owner@claim.test",
	})
	if err != nil {
		t.Fatalf("CreateWorkspace: %v", err)
	}
	ctx = utils.SetWorkspaceIdInContext(ctx, ws.ID.String())

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	var project models.Project
	if err := db.WithContext(ctx).Where("workspace_id = ?", ws.ID.String()).First(&project).Error; err != nil {
		t.Fatalf("fetch default project: %v", err)
	}

	article, err := models.CreateArticle(ctx, &models.NewArticle{
		ProjectId: project.ID,
		Title:     "Concurrent Claim Target",
		Keyword:   "claims",
	})
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	changed, err := models.TransitionArticleStatus(ctx, nil, article.ID, models.ArticleStatusToGenerate)
	if err != nil || !changed {
		t.Fatalf("move to to_generate: changed=%v err=%v", changed, err)
	}

	const claimers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, claimers)
	errs := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := models.TransitionArticleStatus(ctx, nil, article.ID, models.ArticleStatusGenerating)
			if err != nil {
				errs <- err
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)
	close(errs)

	for err := range errs {
		t.Errorf("TransitionArticleStatus: %v", err)
	}
	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d", won)
	}

	after, err := models.GetArticleByID(ctx, article.ID)
	if err != nil {
		t.Fatalf("GetArticleByID: %v", err)
	}
	if after.Status != models.ArticleStatusGenerating {
		t.Fatalf("article status = %s, want %s", after.Status, models.ArticleStatusGenerating)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("contentflow-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("contentflow-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=contentflow_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
