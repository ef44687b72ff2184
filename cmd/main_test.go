package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	repository "github.com/okian/calibrate/internal/adapters/repository"
	app "github.com/okian/calibrate/internal/app"
	"github.com/okian/calibrate/internal/config"
	"github.com/okian/calibrate/internal/domain/model"
	"github.com/okian/calibrate/pkg/logger"
	"github.com/okian/calibrate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("CALIBRATE_ADDR", ":8080")
			_ = os.Setenv("CALIBRATE_PERSISTENCE__QUEUE_SIZE", "1000")
			_ = os.Setenv("CALIBRATE_PERSISTENCE__WORKERS", "4")
			defer func() {
				_ = os.Unsetenv("CALIBRATE_ADDR")
				_ = os.Unsetenv("CALIBRATE_PERSISTENCE__QUEUE_SIZE")
				_ = os.Unsetenv("CALIBRATE_PERSISTENCE__WORKERS")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Persistence.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.Persistence.Workers, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing invalid configuration", func() {
			_ = os.Setenv("CALIBRATE_ADDR", "")
			defer func() { _ = os.Unsetenv("CALIBRATE_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then a manager on its own registry should be creatable", func() {
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given a store configuration", t, func() {
		ctx := context.Background()
		cfg := config.New()

		convey.Convey("When the driver is memory", func() {
			cfg.Store.MaxItemsPerOwner = 1
			store, err := openStore(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			convey.Convey("Then an in-memory store honouring the owner limit is returned", func() {
				_, ok := store.(*repository.TreapStore)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(store.Upsert(ctx, "u", model.RatedItem{ID: "a", Rating: 5}), convey.ShouldBeNil)
				err := store.Upsert(ctx, "u", model.RatedItem{ID: "b", Rating: 5})
				convey.So(errors.Is(err, repository.ErrLibraryFull), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the driver is unknown", func() {
			cfg.Store.Driver = "mongo"
			store, err := openStore(ctx, cfg)

			convey.Convey("Then it is rejected as invalid config", func() {
				convey.So(store, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given the assembled HTTP surface", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		svc := app.New(app.WithSelectorSeed(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(newMux(ctx, svc))
		defer srv.Close()

		do := func(method, path, body string) *http.Response {
			req, err := http.NewRequestWithContext(ctx, method, srv.URL+path, strings.NewReader(body))
			convey.So(err, convey.ShouldBeNil)
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			return resp
		}

		convey.Convey("When an owner seeds an item and starts a session", func() {
			var seeded []int
			for _, body := range []string{
				`{"owner_id":"u1","item_id":"a","title":"Alpha","rating":8}`,
				`{"owner_id":"u1","item_id":"b","title":"Bravo","rating":6}`,
				`{"owner_id":"u1","item_id":"c","title":"Charlie","rating":3.5}`,
			} {
				seeded = append(seeded, do(http.MethodPut, "/items", body).StatusCode)
			}
			start := do(http.MethodPost, "/sessions", `{"owner_id":"u1","item_id":"n","title":"New","emotion":"liked"}`)

			convey.Convey("Then both requests succeed", func() {
				convey.So(seeded, convey.ShouldResemble, []int{http.StatusOK, http.StatusOK, http.StatusOK})
				convey.So(start.StatusCode, convey.ShouldEqual, http.StatusCreated)
			})
		})

		convey.Convey("When docs and health are requested", func() {
			convey.Convey("Then they are served", func() {
				convey.So(do(http.MethodGet, "/healthz", "").StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(do(http.MethodGet, "/openapi.yaml", "").StatusCode, convey.ShouldEqual, http.StatusOK)
				convey.So(do(http.MethodGet, "/api-docs", "").StatusCode, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the system metrics updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
		})

		convey.Convey("When the service metrics updater runs until its context ends", func() {
			svc := app.New()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("When metrics are updated once", func() {
			svc := app.New()
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
