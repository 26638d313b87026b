//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atelier-market/api/internal/domain"
	pconfig "github.com/atelier-market/api/internal/platform/config"
	pfirestore "github.com/atelier-market/api/internal/platform/firestore"
	"github.com/atelier-market/api/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func TestProductRepositoryIntegration(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "products-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	seed := domain.Product{
		ID:         "prod_race",
		StoreID:    "st_test",
		Name:       "Linen Tote",
		Price:      45000,
		Stock:      5,
		CategoryID: "cat_bags",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Insert(ctx, seed); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	t.Run("concurrent decrements never oversell", func(t *testing.T) {
		const attempts = 10

		var wg sync.WaitGroup
		results := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = repo.AdjustStocks(ctx, "st_test", []repositories.StockAdjustment{
					{ProductID: "prod_race", Delta: -1},
				})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		insufficient := 0
		for _, err := range results {
			if err == nil {
				succeeded++
				continue
			}
			var stockErr *repositories.StockError
			if errors.As(err, &stockErr) && stockErr.Code == repositories.StockErrorInsufficient {
				insufficient++
				continue
			}
			t.Fatalf("unexpected adjust error: %v", err)
		}
		if succeeded != 5 {
			t.Fatalf("expected exactly 5 successful decrements, got %d (insufficient=%d)", succeeded, insufficient)
		}
		if insufficient != attempts-5 {
			t.Fatalf("expected %d insufficient errors, got %d", attempts-5, insufficient)
		}

		product, err := repo.FindByID(ctx, "prod_race")
		if err != nil {
			t.Fatalf("find after race: %v", err)
		}
		if product.Stock != 0 {
			t.Fatalf("expected stock 0, got %d", product.Stock)
		}
		if !product.IsArchived {
			t.Fatal("expected product archived once stock hit zero")
		}
	})

	t.Run("restock keeps product archived", func(t *testing.T) {
		levels, err := repo.AdjustStocks(ctx, "st_test", []repositories.StockAdjustment{
			{ProductID: "prod_race", Delta: 3},
		})
		if err != nil {
			t.Fatalf("restock: %v", err)
		}
		if len(levels) != 1 || levels[0].Remaining != 3 {
			t.Fatalf("unexpected levels %+v", levels)
		}

		product, err := repo.FindByID(ctx, "prod_race")
		if err != nil {
			t.Fatalf("find after restock: %v", err)
		}
		if product.Stock != 3 {
			t.Fatalf("expected stock 3, got %d", product.Stock)
		}
		if !product.IsArchived {
			t.Fatal("restocking must not un-archive the product")
		}
	})

	t.Run("missing product fails whole batch", func(t *testing.T) {
		_, err := repo.AdjustStocks(ctx, "st_test", []repositories.StockAdjustment{
			{ProductID: "prod_race", Delta: -1},
			{ProductID: "prod_ghost", Delta: -1},
		})
		if err == nil {
			t.Fatal("expected stock error for missing product")
		}
		var stockErr *repositories.StockError
		if !errors.As(err, &stockErr) || stockErr.Code != repositories.StockErrorProductNotFound {
			t.Fatalf("expected product not found code, got %v", err)
		}

		product, err := repo.FindByID(ctx, "prod_race")
		if err != nil {
			t.Fatalf("find after failed batch: %v", err)
		}
		if product.Stock != 3 {
			t.Fatalf("failed batch must not touch stock, got %d", product.Stock)
		}
	})

	t.Run("cross store product treated as missing", func(t *testing.T) {
		_, err := repo.AdjustStocks(ctx, "st_other", []repositories.StockAdjustment{
			{ProductID: "prod_race", Delta: -1},
		})
		var stockErr *repositories.StockError
		if !errors.As(err, &stockErr) || stockErr.Code != repositories.StockErrorProductNotFound {
			t.Fatalf("expected product not found for foreign store, got %v", err)
		}
	})

	t.Run("count in stock excludes archived", func(t *testing.T) {
		active := domain.Product{
			ID:        "prod_active",
			StoreID:   "st_test",
			Name:      "Wool Scarf",
			Price:     30000,
			Stock:     7,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.Insert(ctx, active); err != nil {
			t.Fatalf("seed active product: %v", err)
		}

		count, err := repo.CountInStock(ctx, "st_test")
		if err != nil {
			t.Fatalf("count in stock: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 non-archived product, got %d", count)
		}
	})
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}
