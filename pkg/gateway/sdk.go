package gateway

import (
	"context"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// sdkAPI routes adapter calls to the Paddle SDK resource clients.
type sdkAPI struct {
	sdk *paddle.SDK
}

func (a sdkAPI) CreateCustomer(ctx context.Context, req *paddle.CreateCustomerRequest) (*paddle.Customer, error) {
	return a.sdk.CustomersClient.CreateCustomer(ctx, req)
}

func (a sdkAPI) CreateProduct(ctx context.Context, req *paddle.CreateProductRequest) (*paddle.Product, error) {
	return a.sdk.ProductsClient.CreateProduct(ctx, req)
}

func (a sdkAPI) CreatePrice(ctx context.Context, req *paddle.CreatePriceRequest) (*paddle.Price, error) {
	return a.sdk.PricesClient.CreatePrice(ctx, req)
}

func (a sdkAPI) CreateTransaction(ctx context.Context, req *paddle.CreateTransactionRequest) (*paddle.Transaction, error) {
	return a.sdk.TransactionsClient.CreateTransaction(ctx, req)
}

// RenewalTransactions returns up to limit renewal transactions of a
// subscription, newest first.
func (a sdkAPI) RenewalTransactions(ctx context.Context, subscriptionRef string, limit int) ([]*paddle.Transaction, error) {
	res, err := a.sdk.TransactionsClient.ListTransactions(ctx, &paddle.ListTransactionsRequest{
		SubscriptionID: []string{subscriptionRef},
		Origin:         []string{string(paddle.TransactionOriginSubscriptionRecurring)},
		OrderBy:        paddle.PtrTo("billed_at[DESC]"),
		PerPage:        paddle.PtrTo(limit),
	})
	if err != nil {
		return nil, err
	}

	txns := make([]*paddle.Transaction, 0, limit)
	if err := res.Iter(ctx, func(txn *paddle.Transaction) (bool, error) {
		txns = append(txns, txn)
		return len(txns) < limit, nil
	}); err != nil {
		return nil, err
	}
	return txns, nil
}

func (a sdkAPI) PauseSubscription(ctx context.Context, req *paddle.PauseSubscriptionRequest) (*paddle.Subscription, error) {
	return a.sdk.SubscriptionsClient.PauseSubscription(ctx, req)
}

func (a sdkAPI) ResumeSubscription(ctx context.Context, req *paddle.ResumeSubscriptionRequest) (*paddle.Subscription, error) {
	return a.sdk.SubscriptionsClient.ResumeSubscription(ctx, req)
}

func (a sdkAPI) CancelSubscription(ctx context.Context, req *paddle.CancelSubscriptionRequest) (*paddle.Subscription, error) {
	return a.sdk.SubscriptionsClient.CancelSubscription(ctx, req)
}

func (a sdkAPI) CreateAdjustment(ctx context.Context, req *paddle.CreateAdjustmentRequest) (*paddle.Adjustment, error) {
	return a.sdk.AdjustmentsClient.CreateAdjustment(ctx, req)
}
