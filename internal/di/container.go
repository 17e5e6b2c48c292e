package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/config"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/platform/idempotency"
	"github.com/hanko-field/storefront/internal/platform/jobs"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/repositories"
	firestoreRepo "github.com/hanko-field/storefront/internal/repositories/firestore"
	redisRepo "github.com/hanko-field/storefront/internal/repositories/redis"
	"github.com/hanko-field/storefront/internal/services"
)

const meterName = "github.com/hanko-field/storefront/internal/di"

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog services.CatalogService
	Offers  services.OfferService
	Cart    services.CartService
}

// Container wires stores, services, and background infrastructure for runtime use.
type Container struct {
	Config        config.Config
	Services      Services
	Authenticator *auth.Authenticator
	Readiness     *repositories.ReadinessProbe
	Idempotency   idempotency.Store

	firestore *pfirestore.Provider
	redis     *redis.Client
	pubsub    *pubsub.Client
	publisher *jobs.PubSubCatalogPublisher
}

// NewContainer constructs the runtime dependencies. Partially built resources are released on error.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *Container, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Container{Config: cfg}
	defer func() {
		if err != nil {
			if closeErr := c.Close(context.Background()); closeErr != nil {
				logger.Warn("release partially built container", zap.Error(closeErr))
			}
		}
	}()

	c.firestore = pfirestore.NewProvider(cfg.Firestore)
	if _, err = c.firestore.Client(ctx); err != nil {
		return nil, fmt.Errorf("build firestore client: %w", err)
	}
	items, err := firestoreRepo.NewItemRepository(c.firestore, cfg.Firestore.ItemsCollection)
	if err != nil {
		return nil, fmt.Errorf("build item repository: %w", err)
	}
	offers, err := firestoreRepo.NewOfferRepository(c.firestore, cfg.Firestore.OffersCollection)
	if err != nil {
		return nil, fmt.Errorf("build offer repository: %w", err)
	}
	sellers, err := firestoreRepo.NewSellerDirectory(c.firestore, cfg.Firestore.SellersCollection)
	if err != nil {
		return nil, fmt.Errorf("build seller directory: %w", err)
	}

	if c.redis, err = redisRepo.NewClient(ctx, cfg.Redis); err != nil {
		return nil, fmt.Errorf("build redis client: %w", err)
	}
	carts, err := redisRepo.NewCartRepository(c.redis, cfg.Cart.KeyPrefix, cfg.Cart.TTL)
	if err != nil {
		return nil, fmt.Errorf("build cart repository: %w", err)
	}
	if c.Idempotency, err = idempotency.NewRedisStore(c.redis, cfg.Idempotency.KeyPrefix); err != nil {
		return nil, fmt.Errorf("build idempotency store: %w", err)
	}

	var events services.CatalogEventPublisher
	if cfg.PubSub.Enabled {
		if c.pubsub, err = jobs.NewPubSubClient(ctx, cfg.PubSub); err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		if c.publisher, err = jobs.NewPubSubCatalogPublisher(c.pubsub.Topic(cfg.PubSub.CatalogTopic)); err != nil {
			return nil, fmt.Errorf("build catalog publisher: %w", err)
		}
		events = c.publisher
	}

	verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		return nil, fmt.Errorf("build firebase verifier: %w", err)
	}
	c.Authenticator = auth.NewAuthenticator(verifier, auth.WithSellerClaim(cfg.Security.SellerClaim))

	if c.Readiness, err = repositories.NewReadinessProbe(0, time.Now, c.firestore, carts); err != nil {
		return nil, fmt.Errorf("build readiness probe: %w", err)
	}

	if c.Services, err = buildServices(logger, items, offers, sellers, carts, events); err != nil {
		return nil, err
	}
	return c, nil
}

// Close flushes the catalog publisher and releases store clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.publisher != nil {
		c.publisher.Stop()
	}
	if c.pubsub != nil {
		errs = append(errs, c.pubsub.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.firestore != nil {
		errs = append(errs, c.firestore.Close())
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func buildServices(
	logger *zap.Logger,
	items repositories.ItemRepository,
	offers repositories.OfferRepository,
	sellers repositories.SellerDirectory,
	carts repositories.CartRepository,
	events services.CatalogEventPublisher,
) (Services, error) {
	meter := otel.GetMeterProvider().Meter(meterName)
	serviceLogger := func(name string) (observability.ServiceLogFunc, error) {
		return observability.NewServiceLogger(logger.Named(name), meter)
	}

	catalogLog, err := serviceLogger("catalog")
	if err != nil {
		return Services{}, fmt.Errorf("build catalog logger: %w", err)
	}
	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Items:  items,
		Offers: offers,
		Events: events,
		Meter:  meter,
		Clock:  time.Now,
		Logger: catalogLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}

	offerLog, err := serviceLogger("offers")
	if err != nil {
		return Services{}, fmt.Errorf("build offer logger: %w", err)
	}
	offerSvc, err := services.NewOfferService(services.OfferServiceDeps{
		Offers: offers,
		Items:  items,
		Clock:  time.Now,
		Logger: offerLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build offer service: %w", err)
	}

	cartLog, err := serviceLogger("cart")
	if err != nil {
		return Services{}, fmt.Errorf("build cart logger: %w", err)
	}
	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:   carts,
		Items:   items,
		Sellers: sellers,
		Offers:  offers,
		Meter:   meter,
		Clock:   time.Now,
		Logger:  cartLog,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}

	return Services{Catalog: catalogSvc, Offers: offerSvc, Cart: cartSvc}, nil
}
