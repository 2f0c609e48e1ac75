package subscription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Plan describes a billable plan. GatewayPriceRef maps it to the payment gateway's price.
type Plan struct {
	ID              string          `yaml:"id"`
	Name            string          `yaml:"name"`
	Description     string          `yaml:"description"`
	Price           Money           `yaml:"price"`
	Interval        BillingInterval `yaml:"interval"`
	TrialDays       int             `yaml:"trial_days"`
	Public          bool            `yaml:"public"`
	GatewayPriceRef string          `yaml:"gateway_price_ref"`
}

// TrialEndsAt calculates when the trial period ends.
// Returns startedAt unchanged if no trial is available.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}

// PlansSource defines how plans are loaded into the catalog.
type PlansSource interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// StaticPlans is an in-memory PlansSource.
type StaticPlans []Plan

func (s StaticPlans) Load(context.Context) (map[string]Plan, error) {
	plans := make(map[string]Plan, len(s))
	for _, p := range s {
		plans[p.ID] = p
	}
	return plans, nil
}

// FilePlansSource loads plans from a YAML document of the form:
//
//	plans:
//	  - id: pro_monthly
//	    name: Pro
//	    price: {amount: 2900, currency: USD}
//	    interval: monthly
type FilePlansSource struct {
	Path string
}

func (s FilePlansSource) Load(context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}
	return ParsePlans(raw)
}

// ParsePlans decodes a YAML plan list.
func ParsePlans(raw []byte) (map[string]Plan, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		if _, dup := plans[p.ID]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("duplicate plan id %q", p.ID))
		}
		plans[p.ID] = p
	}
	return plans, nil
}

// Catalog is a validated, read-only set of plans.
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog loads and validates plans from src.
func NewCatalog(ctx context.Context, src PlansSource) (*Catalog, error) {
	if src == nil {
		panic("subscription: PlansSource is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	return &Catalog{plans: plans}, nil
}

// Plan returns the plan with the given id.
func (c *Catalog) Plan(id string) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// Len returns the number of plans in the catalog.
func (c *Catalog) Len() int { return len(c.plans) }

func validatePlans(plans map[string]Plan) error {
	if len(plans) == 0 {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("no plans defined"))
	}
	for id, p := range plans {
		if id == "" || p.ID != id {
			return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan key %q does not match id %q", id, p.ID))
		}
		if !p.Interval.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q: unknown interval %q", id, p.Interval))
		}
		if !p.Price.IsPositive() {
			return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q: price must be positive with a currency code", id))
		}
		if p.TrialDays < 0 {
			return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %q: negative trial days", id))
		}
	}
	return nil
}
