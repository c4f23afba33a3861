package database

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/filebox/internal/config"
	"github.com/bigkaa/filebox/internal/domain/model"
	"github.com/bigkaa/filebox/internal/repository"
)

// setupTestDB запускает PostgreSQL в Docker-контейнере через testcontainers.
// Возвращает конфиг с адресом контейнера.
func setupTestDB(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:17-alpine"),
		postgres.WithDatabase("filebox_test"),
		postgres.WithUsername("filebox"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	os.Setenv("FB_DB_HOST", host)
	os.Setenv("FB_DB_PORT", port.Port())
	os.Setenv("FB_DB_NAME", "filebox_test")
	os.Setenv("FB_DB_USER", "filebox")
	os.Setenv("FB_DB_PASSWORD", "test-password")
	os.Setenv("FB_DB_SSL_MODE", "disable")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	return cfg
}

// testLogger возвращает slog-логгер для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// TestConnectAndMigrate проверяет подключение и применение миграций.
func TestConnectAndMigrate(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	if err := Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	checker := NewReadinessChecker(pool)
	status, msg := checker.CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = (%q, %q), ожидался ok", status, msg)
	}
}

// TestRepositories проверяет репозитории против реальной PostgreSQL:
// ownership-scoping, сортировку листинга, идемпотентность удаления.
func TestRepositories(t *testing.T) {
	cfg := setupTestDB(t)
	ctx := context.Background()

	if err := Migrate(cfg, testLogger()); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}

	pool, err := Connect(ctx, cfg, testLogger())
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	users := repository.NewUserRepository(pool)
	files := repository.NewFileRepository(pool)

	// Создаём двух пользователей
	alice, err := users.Create(ctx, &model.User{
		Email: "alice@example.com", Name: "Alice", PasswordHash: "hash-a",
	})
	if err != nil {
		t.Fatalf("ошибка создания пользователя: %v", err)
	}
	bob, err := users.Create(ctx, &model.User{
		Email: "bob@example.com", Name: "Bob", PasswordHash: "hash-b",
	})
	if err != nil {
		t.Fatalf("ошибка создания пользователя: %v", err)
	}

	// Дубликат email запрещён (case-insensitive)
	if _, err := users.Create(ctx, &model.User{
		Email: "Alice@example.com", Name: "Fake", PasswordHash: "h",
	}); !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Errorf("ожидался ErrDuplicateEmail, получено: %v", err)
	}

	// Создаём файлы Alice в известном порядке
	first, err := files.Create(ctx, &model.FileRecord{
		StorageName: "1-aaaa-old.txt", OriginalName: "old.txt",
		Size: 3, MimeType: "text/plain", OwnerID: alice.ID,
	})
	if err != nil {
		t.Fatalf("ошибка создания записи файла: %v", err)
	}
	second, err := files.Create(ctx, &model.FileRecord{
		StorageName: "2-bbbb-new.txt", OriginalName: "new.txt",
		Size: 4, MimeType: "text/plain", OwnerID: alice.ID,
	})
	if err != nil {
		t.Fatalf("ошибка создания записи файла: %v", err)
	}

	// Листинг: только файлы Alice, новые первыми
	list, err := files.ListByOwner(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("листинг: ожидалось 2 записи, получено %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("листинг должен быть отсортирован новые-первыми: %v, %v", list[0].ID, list[1].ID)
	}

	// Bob не видит файл Alice
	if _, err := files.GetOwned(ctx, first.ID, bob.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("чужой файл должен возвращать ErrNotFound, получено: %v", err)
	}
	if err := files.DeleteOwned(ctx, first.ID, bob.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("удаление чужого файла должно возвращать ErrNotFound, получено: %v", err)
	}

	// Владелец видит и удаляет свой файл
	got, err := files.GetOwned(ctx, first.ID, alice.ID)
	if err != nil {
		t.Fatalf("ошибка получения файла: %v", err)
	}
	if got.OriginalName != "old.txt" || got.Size != 3 {
		t.Errorf("неверные данные записи: %+v", got)
	}

	if err := files.DeleteOwned(ctx, first.ID, alice.ID); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	// Повторное удаление — ErrNotFound, не сбой
	if err := files.DeleteOwned(ctx, first.ID, alice.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("повторное удаление должно возвращать ErrNotFound, получено: %v", err)
	}

	// Обновление имени пользователя
	renamed, err := users.UpdateName(ctx, alice.ID, "Alice Cooper")
	if err != nil {
		t.Fatalf("ошибка обновления имени: %v", err)
	}
	if renamed.Name != "Alice Cooper" {
		t.Errorf("имя не обновлено в возвращённой записи: %q", renamed.Name)
	}
	updated, err := users.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ошибка получения пользователя: %v", err)
	}
	if updated.Name != "Alice Cooper" {
		t.Errorf("имя не обновлено: %q", updated.Name)
	}
}
