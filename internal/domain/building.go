package domain

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// BuildingOption is a facility type that can be built on a site.
type BuildingOption struct {
	ID               string  `json:"id" yaml:"id"`
	Name             string  `json:"name" yaml:"name"`
	Cost             int     `json:"cost" yaml:"cost"`
	EnergyEfficiency int     `json:"energy_efficiency" yaml:"energy_efficiency"`
	Capacity         int     `json:"capacity" yaml:"capacity"`
	CarbonImpact     float64 `json:"carbon_impact" yaml:"carbon_impact"` // tons per day
	Description      string  `json:"description" yaml:"description"`
}

// Validate checks the option's numeric ranges.
func (b BuildingOption) Validate() error {
	var errs []error
	if b.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if b.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if b.Cost <= 0 {
		errs = append(errs, fmt.Errorf("cost must be positive, got %d", b.Cost))
	}
	if b.EnergyEfficiency < 0 || b.EnergyEfficiency > 100 {
		errs = append(errs, fmt.Errorf("energy_efficiency must be within [0, 100], got %d", b.EnergyEfficiency))
	}
	if b.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("capacity must be positive, got %d", b.Capacity))
	}
	if b.CarbonImpact < 0 {
		errs = append(errs, fmt.Errorf("carbon_impact must not be negative, got %g", b.CarbonImpact))
	}
	if len(errs) > 0 {
		return fmt.Errorf("building %q: %w", b.ID, errors.Join(errs...))
	}
	return nil
}

// BuildingCatalog is an immutable, ordered set of BuildingOptions.
type BuildingCatalog struct {
	options []BuildingOption
	byID    map[string]int
}

// NewBuildingCatalog validates options and indexes them by id. Any invalid
// option or duplicate id rejects the whole catalog.
func NewBuildingCatalog(options []BuildingOption) (*BuildingCatalog, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("%w: no building options", ErrInvalidCatalog)
	}
	c := &BuildingCatalog{
		options: make([]BuildingOption, len(options)),
		byID:    make(map[string]int, len(options)),
	}
	copy(c.options, options)
	for i, opt := range c.options {
		if err := opt.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
		}
		if _, dup := c.byID[opt.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate building id %q", ErrInvalidCatalog, opt.ID)
		}
		c.byID[opt.ID] = i
	}
	return c, nil
}

// DefaultBuildingCatalog returns the built-in three-tier catalog.
func DefaultBuildingCatalog() *BuildingCatalog {
	c, err := NewBuildingCatalog([]BuildingOption{
		{
			ID:               "1",
			Name:             "Standard Data Center",
			Cost:             2_000_000,
			EnergyEfficiency: 60,
			Capacity:         5000,
			CarbonImpact:     0.8,
			Description:      "Basic facility with standard cooling and power systems.",
		},
		{
			ID:               "2",
			Name:             "Eco Optimized Center",
			Cost:             3_500_000,
			EnergyEfficiency: 85,
			Capacity:         4800,
			CarbonImpact:     0.4,
			Description:      "Energy-efficient design with improved cooling systems and partial renewable integration.",
		},
		{
			ID:               "3",
			Name:             "Next-Gen Sustainable Facility",
			Cost:             5_000_000,
			EnergyEfficiency: 95,
			Capacity:         5200,
			CarbonImpact:     0.1,
			Description:      "Cutting-edge facility with advanced liquid cooling, on-site renewables, and intelligent power management.",
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Buildings []BuildingOption `yaml:"buildings"`
}

// LoadBuildingCatalog decodes a YAML catalog of the form
//
//	buildings:
//	  - id: "1"
//	    name: Standard Data Center
//	    cost: 2000000
//	    ...
func LoadBuildingCatalog(r io.Reader) (*BuildingCatalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f catalogFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalidCatalog, err)
	}
	return NewBuildingCatalog(f.Buildings)
}

// Options returns the options in catalog order.
func (c *BuildingCatalog) Options() []BuildingOption {
	out := make([]BuildingOption, len(c.options))
	copy(out, c.options)
	return out
}

// Lookup finds an option by id.
func (c *BuildingCatalog) Lookup(id string) (BuildingOption, error) {
	i, ok := c.byID[id]
	if !ok {
		return BuildingOption{}, fmt.Errorf("%w: %q", ErrUnknownBuilding, id)
	}
	return c.options[i], nil
}
