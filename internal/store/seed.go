package store

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/agentoven/studyhall/pkg/models"
)

// Seed is the YAML fixture shape used for local development.
type Seed struct {
	Courses     []models.Course     `yaml:"courses"`
	Modules     []models.Module     `yaml:"modules"`
	Pages       []models.Page       `yaml:"pages"`
	Assignments []models.Assignment `yaml:"assignments"`
	Memberships []models.Membership `yaml:"memberships"`
}

// LoadSeed reads a YAML fixture from path and writes it through w.
func LoadSeed(ctx context.Context, w ContentWriter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if err := ApplySeed(ctx, w, &seed); err != nil {
		return err
	}
	log.Info().
		Str("path", path).
		Int("courses", len(seed.Courses)).
		Int("pages", len(seed.Pages)).
		Msg("🌱 Seed data loaded")
	return nil
}

// ApplySeed writes seed content in dependency order.
func ApplySeed(ctx context.Context, w ContentWriter, seed *Seed) error {
	for i := range seed.Courses {
		if err := w.PutCourse(ctx, &seed.Courses[i]); err != nil {
			return err
		}
	}
	for i := range seed.Modules {
		if err := w.PutModule(ctx, &seed.Modules[i]); err != nil {
			return err
		}
	}
	for i := range seed.Pages {
		if err := w.PutPage(ctx, &seed.Pages[i]); err != nil {
			return err
		}
	}
	for i := range seed.Assignments {
		if err := w.PutAssignment(ctx, &seed.Assignments[i]); err != nil {
			return err
		}
	}
	for i := range seed.Memberships {
		if err := w.PutMembership(ctx, &seed.Memberships[i]); err != nil {
			return err
		}
	}
	return nil
}
