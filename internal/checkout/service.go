package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/angelmondragon/bookstore-backend/internal/cart"
	"github.com/angelmondragon/bookstore-backend/internal/orders"
	"github.com/angelmondragon/bookstore-backend/internal/subscriptions"
	pkgcheckout "github.com/angelmondragon/bookstore-backend/pkg/checkout"
	"github.com/angelmondragon/bookstore-backend/pkg/config"
	"github.com/angelmondragon/bookstore-backend/pkg/db/models"
	"github.com/angelmondragon/bookstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/gateway"
	"github.com/angelmondragon/bookstore-backend/pkg/logger"
	"github.com/angelmondragon/bookstore-backend/pkg/metrics"
	"github.com/angelmondragon/bookstore-backend/pkg/money"
	"github.com/angelmondragon/bookstore-backend/pkg/types"
	"github.com/google/uuid"
)

type cartReader interface {
	FetchCart(ctx context.Context, userID uuid.UUID) (*cart.View, error)
}

type catalogReader interface {
	GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
}

type linkIssuer interface {
	CreatePaymentLink(ctx context.Context, req gateway.LinkRequest) (*gateway.Link, error)
	CreateSubscriptionLink(ctx context.Context, req gateway.LinkRequest) (*gateway.Link, error)
	FindLinkByReference(ctx context.Context, referenceID string) (*gateway.LinkStatus, error)
}

// Service turns purchase intents into persisted records plus a payment link.
// The record is always written before the gateway is called.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input OrderInput) (*OrderResult, error)
	PurchaseBook(ctx context.Context, userID, bookID uuid.UUID, input OrderInput) (*OrderResult, error)
	RetryOrderPayment(ctx context.Context, userID, orderID uuid.UUID) (*OrderResult, error)
	CreateSubscriptionLink(ctx context.Context, userID uuid.UUID, input SubscriptionInput) (*SubscriptionResult, error)
	RetrySubscriptionPayment(ctx context.Context, userID, subscriptionID uuid.UUID) (*SubscriptionResult, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Cart          cartReader
	Catalog       catalogReader
	Orders        orders.Ledger
	Subscriptions subscriptions.Ledger
	Gateway       linkIssuer
	Config        config.GatewayConfig
	Logger        *logger.Logger
	Metrics       *metrics.PaymentMetrics
}

type service struct {
	cart          cartReader
	catalog       catalogReader
	orders        orders.Ledger
	subscriptions subscriptions.Ledger
	gateway       linkIssuer
	recovery      *LinkRecovery
	cfg           config.GatewayConfig
	logg          *logger.Logger
	metrics       *metrics.PaymentMetrics
}

// NewService builds the checkout orchestrator.
func NewService(params ServiceParams) (Service, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders ledger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if strings.TrimSpace(params.Config.CallbackURL) == "" {
		return nil, fmt.Errorf("gateway callback url required")
	}
	recovery, err := NewLinkRecovery(RecoveryParams{
		Orders:        params.Orders,
		Subscriptions: params.Subscriptions,
		Gateway:       params.Gateway,
		Logger:        params.Logger,
		Metrics:       params.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &service{
		cart:          params.Cart,
		catalog:       params.Catalog,
		orders:        params.Orders,
		subscriptions: params.Subscriptions,
		gateway:       params.Gateway,
		recovery:      recovery,
		cfg:           params.Config,
		logg:          params.Logger,
		metrics:       params.Metrics,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input OrderInput) (*OrderResult, error) {
	if err := validateOrderInput(userID, input); err != nil {
		return nil, err
	}
	if existing, err := s.orders.FindByIdempotencyKey(ctx, userID, input.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return s.payOrder(ctx, existing)
	}

	view, err := s.cart.FetchCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := pkgcheckout.ValidateAvailability(view.Unavailable); err != nil {
		return nil, err
	}
	if view.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	items := make(types.OrderItems, 0, len(view.Items))
	for _, line := range view.Items {
		items = append(items, types.OrderItem{
			BookID: line.BookID,
			Title:  line.Title,
			Author: line.Author,
			Price:  line.Price,
		})
	}
	return s.placeOrder(ctx, userID, enums.OrderSourceCart, items, input)
}

// PurchaseBook is the single-item variant of CreateOrder. The cart is not read.
func (s *service) PurchaseBook(ctx context.Context, userID, bookID uuid.UUID, input OrderInput) (*OrderResult, error) {
	if err := validateOrderInput(userID, input); err != nil {
		return nil, err
	}
	if existing, err := s.orders.FindByIdempotencyKey(ctx, userID, input.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return s.payOrder(ctx, existing)
	}

	book, err := s.catalog.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	items := types.OrderItems{{
		BookID: book.ID,
		Title:  book.Title,
		Author: book.Author,
		Price:  book.Price,
	}}
	return s.placeOrder(ctx, userID, enums.OrderSourceDirect, items, input)
}

func (s *service) RetryOrderPayment(ctx context.Context, userID, orderID uuid.UUID) (*OrderResult, error) {
	order, err := s.orders.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment already settled").WithDetails(map[string]any{
			"orderId":       order.ID,
			"paymentStatus": order.PaymentStatus,
		})
	}
	return s.payOrder(ctx, order)
}

func (s *service) CreateSubscriptionLink(ctx context.Context, userID uuid.UUID, input SubscriptionInput) (*SubscriptionResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if missing := missingCustomerFields(input.Customer); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer details incomplete").WithDetails(map[string]any{"missingFields": missing})
	}
	if existing, err := s.subscriptions.FindByIdempotencyKey(ctx, userID, input.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return s.paySubscription(ctx, &SubscriptionIntent{Subscription: existing})
	}

	plan, err := s.catalog.GetPlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	currency := plan.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	sub, _, err := s.subscriptions.Create(ctx, &models.Subscription{
		UserID:         userID,
		PlanID:         plan.ID,
		IdempotencyKey: input.IdempotencyKey,
		Amount:         plan.Price,
		Currency:       currency,
		Interval:       plan.Interval,
		Customer:       input.Customer,
	})
	if err != nil {
		return nil, err
	}
	return s.paySubscription(ctx, &SubscriptionIntent{Subscription: sub, PlanName: plan.Name})
}

func (s *service) RetrySubscriptionPayment(ctx context.Context, userID, subscriptionID uuid.UUID) (*SubscriptionResult, error) {
	sub, err := s.subscriptions.GetForUser(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription payment already settled").WithDetails(map[string]any{
			"subscriptionId": sub.ID,
			"status":         sub.Status,
		})
	}
	return s.paySubscription(ctx, &SubscriptionIntent{Subscription: sub})
}

func (s *service) placeOrder(ctx context.Context, userID uuid.UUID, source enums.OrderSource, items types.OrderItems, input OrderInput) (*OrderResult, error) {
	order, created, err := s.orders.Create(ctx, &models.Order{
		UserID:            userID,
		IdempotencyKey:    input.IdempotencyKey,
		Source:            source,
		Items:             items,
		Currency:          s.cfg.Currency,
		ShippingAddress:   input.ShippingAddress,
		PaymentMethodType: input.PaymentMethod,
	})
	if err != nil {
		return nil, err
	}
	if created && s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, order.ID.String()), map[string]any{
			"source": source,
			"total":  order.Total.StringFixed(2),
			"items":  len(order.Items),
		})
		s.logg.Info(logCtx, "checkout.order_created")
	}
	return s.payOrder(ctx, order)
}

func (s *service) payOrder(ctx context.Context, order *models.Order) (*OrderResult, error) {
	intent, err := s.initiate(ctx, &OrderIntent{Order: order})
	if err != nil {
		return nil, err
	}
	stored := intent.(*OrderIntent).Order
	_, linkURL, _ := intent.PaymentLink()
	return &OrderResult{Order: orders.NewOrderDTO(stored), PaymentLinkURL: linkURL}, nil
}

func (s *service) paySubscription(ctx context.Context, intent *SubscriptionIntent) (*SubscriptionResult, error) {
	paid, err := s.initiate(ctx, intent)
	if err != nil {
		return nil, err
	}
	stored := paid.(*SubscriptionIntent).Subscription
	_, linkURL, _ := paid.PaymentLink()
	return &SubscriptionResult{Subscription: subscriptions.NewSubscriptionDTO(stored), PaymentLinkURL: linkURL}, nil
}

// initiate issues the payment link for a persisted intent. An intent that
// already carries a link is returned as is, so retries never mint a second one.
func (s *service) initiate(ctx context.Context, intent PurchaseIntent) (PurchaseIntent, error) {
	ctx = s.scope(ctx, intent)
	if _, _, ok := intent.PaymentLink(); ok {
		s.metrics.IncInitiation(intent.Kind(), metrics.OutcomeReusedLink)
		return intent, nil
	}
	if intent.Settled() {
		return intent, nil
	}

	req, err := s.linkRequest(intent)
	if err != nil {
		s.metrics.IncInitiation(intent.Kind(), metrics.OutcomeFailed)
		return nil, err
	}

	// A failed earlier call may still have produced a link the buyer was sent.
	recovered, err := s.recovery.Recover(ctx, intent)
	if err != nil {
		if _, isGateway := gateway.KindOf(err); !isGateway {
			return nil, err
		}
		s.metrics.IncInitiation(intent.Kind(), metrics.OutcomeNetwork)
		s.warn(ctx, "checkout.payment_link_lookup_failed", err)
		return nil, gateway.APIError(err, "payment initiation failed, retry", map[string]any{intent.Kind() + "Id": intent.ID()})
	}
	if recovered != nil {
		return recovered, nil
	}

	var link *gateway.Link
	switch intent.(type) {
	case *OrderIntent:
		link, err = s.gateway.CreatePaymentLink(ctx, req)
	case *SubscriptionIntent:
		link, err = s.gateway.CreateSubscriptionLink(ctx, req)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unsupported purchase intent %T", intent))
	}
	if err != nil {
		return nil, s.recordFailure(ctx, intent, err)
	}

	stored, err := s.recovery.attach(ctx, intent, link)
	if err != nil {
		return nil, err
	}
	s.metrics.IncInitiation(intent.Kind(), metrics.OutcomeSuccess)
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "payment_link_id", link.ID), "checkout.payment_link_created")
	}
	return stored, nil
}

func (s *service) linkRequest(intent PurchaseIntent) (gateway.LinkRequest, error) {
	amount, err := money.ToMinorUnits(intent.Amount())
	if err != nil {
		return gateway.LinkRequest{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "convert amount")
	}
	callback, err := url.Parse(s.cfg.CallbackURL)
	if err != nil {
		return gateway.LinkRequest{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse callback url")
	}
	query := callback.Query()
	query.Set(intent.callbackParam(), intent.ID().String())
	callback.RawQuery = query.Encode()

	customer := intent.Customer()
	return gateway.LinkRequest{
		AmountMinor: amount,
		Currency:    intent.Currency(),
		Description: intent.Description(),
		ReferenceID: linkReference(intent.ID(), intent.Attempts()+1),
		Customer: gateway.Customer{
			Name:    customer.Name,
			Email:   customer.Email,
			Contact: customer.Contact,
		},
		Notify:      gateway.Notify{SMS: s.cfg.NotifySMS, Email: s.cfg.NotifyEmail},
		CallbackURL: callback.String(),
	}, nil
}

// recordFailure stores the initiation failure and maps the gateway error
// onto the API taxonomy. The record stays pending either way.
func (s *service) recordFailure(ctx context.Context, intent PurchaseIntent, gwErr error) error {
	// The request context may already be past its deadline.
	writeCtx := context.WithoutCancel(ctx)
	var err error
	switch v := intent.(type) {
	case *OrderIntent:
		err = s.orders.MarkInitiationFailed(writeCtx, v.Order.ID, gwErr.Error())
	case *SubscriptionIntent:
		err = s.subscriptions.MarkInitiationFailed(writeCtx, v.Subscription.ID, gwErr.Error())
	}
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.record_initiation_failure", err)
	}

	details := map[string]any{intent.Kind() + "Id": intent.ID()}
	switch kind, _ := gateway.KindOf(gwErr); kind {
	case gateway.KindNetwork:
		s.metrics.IncInitiation(intent.Kind(), metrics.OutcomeNetwork)
		s.warn(ctx, "checkout.payment_initiation_failed", gwErr)
	case gateway.KindValidation:
		s.metrics.IncInitiation(intent.Kind(), metrics.OutcomeRejected)
		s.warn(ctx, "checkout.payment_rejected", gwErr)
	default:
		s.metrics.IncInitiation(intent.Kind(), metrics.OutcomeFailed)
		if s.logg != nil {
			s.logg.Error(ctx, "checkout.payment_initiation_misconfigured", gwErr)
		}
	}
	return gateway.APIError(gwErr, "payment initiation failed, retry", details)
}

func (s *service) scope(ctx context.Context, intent PurchaseIntent) context.Context {
	if s.logg == nil {
		return ctx
	}
	if intent.Kind() == KindSubscription {
		return s.logg.WithSubscriptionID(ctx, intent.ID().String())
	}
	return s.logg.WithOrderID(ctx, intent.ID().String())
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func validateOrderInput(userID uuid.UUID, input OrderInput) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if strings.TrimSpace(input.IdempotencyKey) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").WithDetails(map[string]any{
			"paymentMethod": input.PaymentMethod,
		})
	}
	return pkgcheckout.ValidateShippingAddress(input.ShippingAddress)
}

func missingCustomerFields(c types.Customer) []string {
	missing := []string{}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(c.Contact) == "" {
		missing = append(missing, "contact")
	}
	return missing
}
