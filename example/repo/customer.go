package repo

import (
	"context"

	"github.com/mickamy/ormfind/example/model"
	"github.com/mickamy/ormfind/orm"
	"github.com/mickamy/ormfind/scope"
)

// CustomerRepository wraps the finder with a repository pattern.
type CustomerRepository struct {
	f  *orm.Finder
	db orm.Querier
}

func NewCustomerRepository(f *orm.Finder, db orm.Querier) *CustomerRepository {
	return &CustomerRepository{f: f, db: db}
}

func (r *CustomerRepository) FindByID(ctx context.Context, id int) (model.Customer, error) {
	return orm.Find[model.Customer](r.f, r.db).Where("id", id).First(ctx)
}

func (r *CustomerRepository) FindAll(ctx context.Context, scopes ...scope.Scope) ([]model.Customer, error) {
	return orm.Find[model.Customer](r.f, r.db).Scopes(scopes...).All(ctx)
}

func (r *CustomerRepository) Orders(ctx context.Context, scopes ...scope.Scope) ([]model.Order, error) {
	return orm.Find[model.Order](r.f, r.db).Scopes(scopes...).All(ctx)
}

// Skus returns the distinct SKUs a customer has ordered.
func (r *CustomerRepository) Skus(ctx context.Context, customerID int) ([]string, error) {
	return orm.Pluck[string](ctx, r.f, r.db,
		`SELECT DISTINCT i."sku" FROM "Item" i JOIN "Order" o ON o."id" = i."orderId" WHERE o."customerId"=? ORDER BY i."sku"`,
		orm.Eq("customerId", customerID))
}
