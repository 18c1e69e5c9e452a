package billing

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is a subscription tier.
type Plan string

const (
	PlanStarter  Plan = "STARTER"
	PlanPro      Plan = "PRO"
	PlanBusiness Plan = "BUSINESS"
)

// Plans lists every tier in ascending order.
var Plans = []Plan{PlanStarter, PlanPro, PlanBusiness}

// ParsePlan resolves a tier name case-insensitively.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Plans {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrPlanNotFound, s)
}

// PlanDefinition describes a single tier as stored in the catalog file.
type PlanDefinition struct {
	Plan          Plan   `yaml:"plan"`
	Name          string `yaml:"name"`
	PropertyLimit int    `yaml:"property_limit"`
	Prices        struct {
		Monthly string `yaml:"monthly"`
		Yearly  string `yaml:"yearly"`
	} `yaml:"prices"`
}

// PlanAssignment pairs a plan with its limit so neither is written alone.
type PlanAssignment struct {
	Plan          Plan
	PropertyLimit int
}

// Catalog is the read-only mapping from tier to limit and processor prices.
type Catalog struct {
	plans   map[Plan]PlanDefinition
	byPrice map[string]Plan
}

//go:embed catalog.yaml
var defaultCatalog []byte

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file; an empty path yields the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates YAML catalog data.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Plans []PlanDefinition `yaml:"plans"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}
	return NewCatalog(doc.Plans...)
}

// NewCatalog validates the definitions and builds a Catalog.
// Every tier must be defined exactly once and price IDs must be unique.
func NewCatalog(defs ...PlanDefinition) (*Catalog, error) {
	c := &Catalog{
		plans:   make(map[Plan]PlanDefinition, len(defs)),
		byPrice: make(map[string]Plan, len(defs)*2),
	}
	for _, def := range defs {
		plan, err := ParsePlan(string(def.Plan))
		if err != nil {
			return nil, errors.Join(ErrInvalidCatalog, err)
		}
		def.Plan = plan
		if _, dup := c.plans[plan]; dup {
			return nil, fmt.Errorf("%w: plan %s defined twice", ErrInvalidCatalog, plan)
		}
		if def.PropertyLimit <= 0 {
			return nil, fmt.Errorf("%w: plan %s must have a positive property limit", ErrInvalidCatalog, plan)
		}
		for _, price := range []string{def.Prices.Monthly, def.Prices.Yearly} {
			if price == "" {
				continue
			}
			if owner, dup := c.byPrice[price]; dup {
				return nil, fmt.Errorf("%w: price %s used by %s and %s", ErrInvalidCatalog, price, owner, plan)
			}
			c.byPrice[price] = plan
		}
		c.plans[plan] = def
	}
	for _, p := range Plans {
		if _, ok := c.plans[p]; !ok {
			return nil, fmt.Errorf("%w: plan %s is missing", ErrInvalidCatalog, p)
		}
	}
	return c, nil
}

// LimitFor returns the property limit of a plan.
func (c *Catalog) LimitFor(plan Plan) (int, error) {
	def, ok := c.plans[plan]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrPlanNotFound, plan)
	}
	return def.PropertyLimit, nil
}

// PriceIDFor returns the processor price for the plan and billing interval.
func (c *Catalog) PriceIDFor(plan Plan, yearly bool) (string, error) {
	def, ok := c.plans[plan]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrPlanNotFound, plan)
	}
	price := def.Prices.Monthly
	if yearly {
		price = def.Prices.Yearly
	}
	if price == "" {
		return "", fmt.Errorf("%w: %s yearly=%t", ErrPriceNotFound, plan, yearly)
	}
	return price, nil
}

// PlanForPrice maps a processor price back to its tier.
func (c *Catalog) PlanForPrice(priceID string) (Plan, bool) {
	p, ok := c.byPrice[priceID]
	return p, ok
}

// Assign returns the plan together with its catalog limit.
func (c *Catalog) Assign(plan Plan) (PlanAssignment, error) {
	limit, err := c.LimitFor(plan)
	if err != nil {
		return PlanAssignment{}, err
	}
	return PlanAssignment{Plan: plan, PropertyLimit: limit}, nil
}

// Compare orders two plans by their limits: negative for a downgrade,
// positive for an upgrade.
func (c *Catalog) Compare(from, to Plan) (int, error) {
	a, err := c.LimitFor(from)
	if err != nil {
		return 0, err
	}
	b, err := c.LimitFor(to)
	if err != nil {
		return 0, err
	}
	return b - a, nil
}
