// internal/platform/di/infra.go
package di

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	pgdb "storefront/internal/adapters/out/db"
	fsrepo "storefront/internal/adapters/out/firestore"
	"storefront/internal/adapters/out/memory"
	"storefront/internal/application/session"
	appcfg "storefront/internal/infra/config"
	"storefront/internal/infra/database"
	firestoreinfra "storefront/internal/infra/firestore"
	"storefront/internal/infra/secrets"
)

// Infra is shared runtime infrastructure for DI.
// - owns external clients (Firestore / Postgres / Firebase Auth / Secret Manager)
// - owns the persistence ports chosen by STORE_BACKEND
//
// IMPORTANT:
// Infra must NOT depend on routers or handlers.
type Infra struct {
	Config *appcfg.Config

	// Clients (owned; Close-managed)
	Firestore    *firestoreinfra.ClientWrapper
	DB           *database.DB
	FirebaseAuth *firebaseauth.Client
	Secrets      *secrets.Provider

	// Record store (postgres backend only)
	Records *pgdb.RecordStorePG

	Stores session.Stores
}

// NewInfra initializes shared infra.
// The selected store backend is strict (return error).
// Firebase Auth and Secret Manager are best-effort (warn + continue).
func NewInfra(ctx context.Context, cfg *appcfg.Config, logger *zap.Logger) (*Infra, error) {
	if cfg == nil {
		return nil, errors.New("di.infra: config is nil")
	}
	log := logger.Named("di.infra")
	inf := &Infra{Config: cfg}

	var clientOpts []option.ClientOption
	if cred := strings.TrimSpace(cfg.FirestoreCredentialsFile); cred != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cred))
		log.Info("using credentials file for GCP clients")
	}

	// 1) Secret Manager (best-effort)
	sp, err := secrets.NewProvider(ctx, cfg.GCPProjectID)
	if err != nil {
		log.Warn("secret manager unavailable; sm:// values will not resolve", zap.Error(err))
		sp = &secrets.Provider{}
	}
	inf.Secrets = sp

	// 2) Store backend (strict)
	switch cfg.StoreBackend {
	case appcfg.BackendMemory:
		inf.Stores = session.Stores{
			Carts:      memory.NewCartRepository(),
			GuestCarts: memory.NewGuestCartRepository(),
			Sessions:   memory.NewGuestSessionRepository(),
		}
		log.Warn("memory store backend: carts are lost on restart")

	case appcfg.BackendFirestore:
		cw, err := firestoreinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile, logger)
		if err != nil {
			inf.Close()
			return nil, fmt.Errorf("di.infra: firestore (project=%s): %w", cfg.FirestoreProjectID, err)
		}
		inf.Firestore = cw
		inf.Stores = session.Stores{
			Carts:      fsrepo.NewCartRepositoryFS(cw.Client),
			GuestCarts: fsrepo.NewGuestCartRepositoryFS(cw.Client),
			Sessions:   fsrepo.NewGuestSessionRepositoryFS(cw.Client),
		}

	case appcfg.BackendPostgres:
		dsn, err := sp.Resolve(ctx, cfg.DatabaseURL)
		if err != nil {
			inf.Close()
			return nil, fmt.Errorf("di.infra: resolve DATABASE_URL: %w", err)
		}
		db, err := database.NewConnection(ctx, dsn, logger)
		if err != nil {
			inf.Close()
			return nil, fmt.Errorf("di.infra: postgres: %w", err)
		}
		inf.DB = db
		inf.Records = pgdb.NewRecordStorePG(db.Client, cfg.RecordTable)
		if err := inf.Records.EnsureSchema(ctx); err != nil {
			inf.Close()
			return nil, fmt.Errorf("di.infra: ensure schema: %w", err)
		}
		inf.Stores = session.Stores{
			Carts:      pgdb.NewCartRepositoryPG(inf.Records),
			GuestCarts: pgdb.NewGuestCartRepositoryPG(inf.Records),
			Sessions:   pgdb.NewGuestSessionRepositoryPG(inf.Records),
		}

	default:
		inf.Close()
		return nil, fmt.Errorf("di.infra: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	log.Info("store backend ready", zap.String("backend", cfg.StoreBackend))

	// 3) Firebase App/Auth (best-effort)
	if cfg.FirebaseProjectID == "" {
		log.Warn("FIREBASE_PROJECT_ID empty; every shopper is anonymous")
	} else {
		fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, clientOpts...)
		if err != nil {
			log.Warn("firebase app init failed", zap.Error(err))
		} else if authClient, err := fbApp.Auth(ctx); err != nil {
			log.Warn("firebase auth init failed", zap.Error(err))
		} else {
			inf.FirebaseAuth = authClient
			log.Info("firebase auth initialized", zap.String("project", cfg.FirebaseProjectID))
		}
	}

	return inf, nil
}

// Close releases every owned client. Safe to call on a partially built Infra.
func (inf *Infra) Close() {
	if inf == nil {
		return
	}
	if inf.Firestore != nil {
		_ = inf.Firestore.Close()
	}
	if inf.DB != nil {
		_ = inf.DB.Close()
	}
	if inf.Secrets != nil {
		_ = inf.Secrets.Close()
	}
}
