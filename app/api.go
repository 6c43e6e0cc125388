package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YGao2005/ucla-class-tracker/config"
	"github.com/YGao2005/ucla-class-tracker/lib"
	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/YGao2005/ucla-class-tracker/lib/scraper"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("classtracker", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Route("/classes", func(r chi.Router) {
			r.Get("/", ctrl.listClasses)
			r.Route("/{subject}/{catalog}", func(r chi.Router) {
				r.Get("/", ctrl.getClass)
				r.Post("/check", ctrl.checkClass)
				r.Delete("/", ctrl.removeClass)
			})
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", ctrl.subscribe)
			r.Delete("/", ctrl.unsubscribe)
			r.Get("/", ctrl.listSubscriptions)
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	if b, err := json.Marshal(body); err != nil {
		ctrl.reject(w, http.StatusInternalServerError, err)
		ctrl.log.Sugar().Error("Request failed", "error", err)
		return
	} else {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(b)
	}
}

func (ctrl *controller) listClasses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	states, err := ctrl.svc.AllClasses(ctx)
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, 200, FromMany[models.ClassState, ClassStateView]([]models.ClassState(states)))
}

func (ctrl *controller) getClass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := chi.URLParam(r, "subject")
	catalog := chi.URLParam(r, "catalog")

	state, err := ctrl.svc.GetClass(ctx, subject, catalog)
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	if state == nil {
		ctrl.reject(w, 404, errors.New("class is not tracked"))
		return
	}
	ctrl.resolve(w, 200, ClassStateView{}.From(*state))
}

func (ctrl *controller) checkClass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := chi.URLParam(r, "subject")
	catalog := chi.URLParam(r, "catalog")

	res, err := ctrl.svc.CheckNow(ctx, subject, catalog)
	if errors.Is(err, scraper.ErrCourseNotFound) {
		ctrl.reject(w, 404, err)
		return
	}
	if err != nil {
		ctrl.reject(w, 502, err)
		return
	}
	ctrl.resolve(w, 200, CheckResultView{}.From(res))
}

func (ctrl *controller) removeClass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := chi.URLParam(r, "subject")
	catalog := chi.URLParam(r, "catalog")

	if err := ctrl.svc.RemoveClass(ctx, subject, catalog); err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, 200, map[string]any{"removed": true})
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platform := r.FormValue("platform")
	userID := r.FormValue("user_id")
	subject := r.FormValue("subject")
	catalog := r.FormValue("catalog")

	if err := requireFields(map[string]string{
		"platform": platform, "user_id": userID, "subject": subject, "catalog": catalog,
	}); err != nil {
		ctrl.reject(w, 400, err)
		return
	}

	state, created, err := ctrl.svc.Subscribe(ctx, platform, userID, subject, catalog)
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	body := map[string]any{"created": created}
	if state != nil {
		body["class"] = ClassStateView{}.From(*state)
	}
	ctrl.resolve(w, http.StatusAccepted, body)
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platform := r.FormValue("platform")
	userID := r.FormValue("user_id")
	subject := r.FormValue("subject")
	catalog := r.FormValue("catalog")

	if err := requireFields(map[string]string{
		"platform": platform, "user_id": userID, "subject": subject, "catalog": catalog,
	}); err != nil {
		ctrl.reject(w, 400, err)
		return
	}

	removed, err := ctrl.svc.Unsubscribe(ctx, platform, userID, subject, catalog)
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, 200, map[string]any{"removed": removed})
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	platform := r.URL.Query().Get("platform")
	userID := r.URL.Query().Get("user_id")

	if err := requireFields(map[string]string{"platform": platform, "user_id": userID}); err != nil {
		ctrl.reject(w, 400, err)
		return
	}

	overviews, err := ctrl.svc.ListSubscriptions(ctx, platform, userID)
	if err != nil {
		ctrl.reject(w, 500, err)
		return
	}
	ctrl.resolve(w, 200, FromMany[lib.ClassOverview, ClassOverviewView](overviews))
}

func requireFields(fields map[string]string) error {
	for name, value := range fields {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}
