package repository

import (
	"context"
	"fmt"
	"os"
	"time"

	"brain2-canvas/internal/domain"

	"gopkg.in/yaml.v3"
)

// Fixtures is the on-disk format used to seed a store for local runs.
type Fixtures struct {
	Owners []OwnerFixtures `yaml:"owners"`
}

type OwnerFixtures struct {
	ID      string          `yaml:"id"`
	Chakras []ChakraFixture `yaml:"chakras"`
	Wheels  []WheelFixture  `yaml:"wheels"`
	Dots    []DotFixture    `yaml:"dots"`
}

type ChakraFixture struct {
	ID       string           `yaml:"id"`
	Heading  string           `yaml:"heading"`
	Purpose  string           `yaml:"purpose"`
	Position *domain.Position `yaml:"position"`
}

type WheelFixture struct {
	ID          string           `yaml:"id"`
	Heading     string           `yaml:"heading"`
	Description string           `yaml:"description"`
	Chakra      string           `yaml:"chakra"`
	Position    *domain.Position `yaml:"position"`
}

type DotFixture struct {
	ID       string           `yaml:"id"`
	Summary  string           `yaml:"summary"`
	Note     string           `yaml:"note"`
	Mood     string           `yaml:"mood"`
	Wheel    string           `yaml:"wheel"`
	Chakra   string           `yaml:"chakra"`
	Position *domain.Position `yaml:"position"`
}

// LoadFixturesFile reads a fixtures file and creates every element in it.
func LoadFixturesFile(ctx context.Context, lc Lifecycle, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return LoadFixtures(ctx, lc, f, time.Now().UTC())
}

// LoadFixtures creates chakras first, then wheels, then dots, so parents
// always exist before their children.
func LoadFixtures(ctx context.Context, lc Lifecycle, f Fixtures, now time.Time) (int, error) {
	created := 0
	for _, owner := range f.Owners {
		if owner.ID == "" {
			return created, domain.ErrMissingOwner
		}
		base := func(id string, pos *domain.Position) domain.Element {
			return domain.Element{ID: id, OwnerID: owner.ID, Position: pos, CreatedAt: now, UpdatedAt: now}
		}

		for _, c := range owner.Chakras {
			if err := lc.CreateChakra(ctx, &domain.Chakra{
				Element: base(c.ID, c.Position), Heading: c.Heading, Purpose: c.Purpose,
			}); err != nil {
				return created, fmt.Errorf("chakra %q: %w", c.ID, err)
			}
			created++
		}
		for _, w := range owner.Wheels {
			if err := lc.CreateWheel(ctx, &domain.Wheel{
				Element: base(w.ID, w.Position), Heading: w.Heading, Description: w.Description, ChakraID: w.Chakra,
			}); err != nil {
				return created, fmt.Errorf("wheel %q: %w", w.ID, err)
			}
			created++
		}
		for _, d := range owner.Dots {
			if d.Wheel != "" && d.Chakra != "" {
				return created, fmt.Errorf("dot %q: %w: both wheel and chakra set", d.ID, domain.ErrInvalidMapping)
			}
			dot := &domain.Dot{Element: base(d.ID, d.Position), Summary: d.Summary, Note: d.Note, Mood: d.Mood}
			switch {
			case d.Wheel != "":
				dot.Parent = &domain.ParentRef{Kind: domain.KindWheel, ID: d.Wheel}
			case d.Chakra != "":
				dot.Parent = &domain.ParentRef{Kind: domain.KindChakra, ID: d.Chakra}
			}
			if err := lc.CreateDot(ctx, dot); err != nil {
				return created, fmt.Errorf("dot %q: %w", d.ID, err)
			}
			created++
		}
	}
	return created, nil
}
