//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "solar_price/internal/adapters/http_server"
	redisad "solar_price/internal/adapters/redis"
	"solar_price/internal/app"
	mysqlrepo "solar_price/internal/storage/mysql"
)

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Skipf("%s not set; export it (e.g. MIGRATIONS_DIR=$PWD/migrations)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=solar"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Skipf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/solar?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

// Refresh a region from the buildings table, then read it back over HTTP.
func TestHTTP_EndToEnd_RefreshAndServe(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO listings (region_id, lat, lng, price_per_unit) VALUES
		('ch-monthey', 46.2551, 6.9540, 9000),
		('ch-monthey', 46.2553, 6.9542, 9400),
		('ch-monthey', 46.2548, 6.9538, 9800)`); err != nil {
		t.Fatalf("seed listings: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO buildings (id, region_id, area, building_type, building_levels, lat, lng, proximity) VALUES
		('w1', 'ch-monthey', 120, 'apartments', 5, 46.2550, 6.9540, '{"hasMountainView":true}')`); err != nil {
		t.Fatalf("seed buildings: %v", err)
	}

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	repo := mysqlrepo.New(db)
	engine := app.NewEngine(nil, repo, cache, nil, app.Options{CacheEnabled: true})

	st, err := app.NewRefreshService(repo, engine, repo, cache).RefreshRegion(ctx, "ch-monthey", 100)
	if err != nil || st.Stored != 1 {
		t.Fatalf("refresh: %+v %v", st, err)
	}

	srv := server.New(5 * time.Second)
	srv.MountHandlers(&server.Handlers{Engine: engine, Q: app.NewQueryService(repo, cache, time.Hour)})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/v1/buildings/w1/estimate")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var view struct {
		BuildingID   string         `json:"buildingId"`
		PricePerUnit float64        `json:"pricePerUnit"`
		Total        *float64       `json:"total"`
		Confidence   float64        `json:"confidence"`
		Details      map[string]any `json:"details"`
	}
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// listings never move the base; they add confidence and show in details
	if view.PricePerUnit != 9330 || view.Total == nil || *view.Total != 1119600 || view.Confidence != 0.9 {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Details["nearbyListings"] != 3.0 || view.Details["listingsMedian"] != 9400.0 {
		t.Fatalf("details: %+v", view.Details)
	}
	if !mr.Exists("solar:estimate-view:w1") {
		t.Fatal("view should be cached after the first read")
	}

	body := `{"buildingId":"adhoc","regionId":"ch-monthey","centroid":{"lng":6.9540,"lat":46.2550}}`
	res2, err := http.Post(ts.URL+"/v1/estimates", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res2.Body.Close()
	var est map[string]any
	_ = json.NewDecoder(res2.Body).Decode(&est)
	if res2.StatusCode != http.StatusOK || est["details"].(map[string]any)["nearbyListings"] != 3.0 {
		t.Fatalf("adhoc estimate: %d %v", res2.StatusCode, est)
	}
}
