// Package seed loads reference data (users, crop catalog, standard plans)
// from a YAML document into the store.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/repository"
	"smartfarm.io/farm/internal/service"
)

//go:embed default.yaml
var defaultDocument []byte

// Document is the seed file layout.
type Document struct {
	Users         []User     `yaml:"users"`
	CropTypes     []CropType `yaml:"cropTypes"`
	StandardPlans []Plan     `yaml:"standardPlans"`
}

type User struct {
	Username string      `yaml:"username"`
	Email    string      `yaml:"email"`
	Name     string      `yaml:"name"`
	Password string      `yaml:"password"`
	Role     domain.Role `yaml:"role"`
}

type CropType struct {
	Name        string    `yaml:"name"`
	NameEn      string    `yaml:"nameEn"`
	NameTh      string    `yaml:"nameTh"`
	Description string    `yaml:"description"`
	Icon        string    `yaml:"icon"`
	Varieties   []Variety `yaml:"varieties"`
}

type Variety struct {
	Name             string `yaml:"name"`
	NameEn           string `yaml:"nameEn"`
	NameTh           string `yaml:"nameTh"`
	Description      string `yaml:"description"`
	GrowthPeriodDays *int   `yaml:"growthPeriodDays"`
}

// Plan links varieties by name.
type Plan struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Varieties   []string `yaml:"varieties"`
	Tasks       []Task   `yaml:"tasks"`
}

type Task struct {
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	DayFromStart int    `yaml:"dayFromStart"`
	ActivityType string `yaml:"activityType"`
}

// Result counts what Apply created.
type Result struct {
	Users     int
	CropTypes int
	Varieties int
	Plans     int
}

// Default returns the embedded seed document.
func Default() (*Document, error) {
	return Parse(defaultDocument)
}

// Load reads the document at path, or the embedded one when path is empty.
func Load(path string) (*Document, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a seed document. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode seed document: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) validate() error {
	for _, u := range d.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("seed user %q: username and password are required", u.Username)
		}
		if !u.Role.Valid() {
			return fmt.Errorf("seed user %q: unknown role %q", u.Username, u.Role)
		}
	}
	for _, ct := range d.CropTypes {
		if ct.Name == "" {
			return errors.New("seed crop type: name is required")
		}
	}
	for _, p := range d.StandardPlans {
		if p.Name == "" {
			return errors.New("seed plan: name is required")
		}
		for _, t := range p.Tasks {
			if _, err := domain.ParseActivityType(t.ActivityType); err != nil {
				return fmt.Errorf("seed plan %q task %q: %w", p.Name, t.Title, err)
			}
			if t.DayFromStart < 0 {
				return fmt.Errorf("seed plan %q task %q: dayFromStart must not be negative", p.Name, t.Title)
			}
		}
	}
	return nil
}

// Seeder writes a Document into a repository.
type Seeder struct {
	repo repository.Repository
	hash func(password string) (string, error)
	now  func() time.Time
}

// NewSeeder creates a Seeder that hashes passwords like registration does.
func NewSeeder(repo repository.Repository) *Seeder {
	return &Seeder{
		repo: repo,
		hash: service.HashPassword,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Apply creates every entry of doc that does not exist yet, in one
// transaction. Running it twice creates nothing the second time.
func (s *Seeder) Apply(ctx context.Context, doc *Document) (Result, error) {
	var res Result
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		res = Result{}
		if err := s.users(ctx, tx, doc.Users, &res); err != nil {
			return err
		}
		varietyIDs, err := s.catalog(ctx, tx, doc.CropTypes, &res)
		if err != nil {
			return err
		}
		return s.plans(ctx, tx, doc.StandardPlans, varietyIDs, &res)
	})
	if err != nil {
		return Result{}, err
	}
	logger.Info("Seed applied",
		zap.Int("users", res.Users),
		zap.Int("crop_types", res.CropTypes),
		zap.Int("varieties", res.Varieties),
		zap.Int("plans", res.Plans),
	)
	return res, nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *Seeder) users(ctx context.Context, tx repository.Repository, users []User, res *Result) error {
	for _, u := range users {
		_, err := tx.GetUserByUsername(ctx, u.Username)
		if err == nil {
			logger.Info("User already exists, skipping", zap.String("username", u.Username))
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get user %s: %w", u.Username, err)
		}
		hash, err := s.hash(u.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		now := s.now()
		if err := tx.CreateUser(ctx, &domain.User{
			ID:           newID(),
			Username:     u.Username,
			Email:        u.Email,
			Name:         u.Name,
			Role:         u.Role,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			return fmt.Errorf("create user %s: %w", u.Username, err)
		}
		res.Users++
	}
	return nil
}

// catalog seeds crop types and varieties and returns every variety id by
// name, existing ones included.
func (s *Seeder) catalog(ctx context.Context, tx repository.Repository, types []CropType, res *Result) (map[string]string, error) {
	existing, err := tx.ListCropTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list crop types: %w", err)
	}
	typeIDs := make(map[string]string, len(existing))
	for _, ct := range existing {
		typeIDs[ct.Name] = ct.ID
	}
	varieties, err := tx.ListVarieties(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list varieties: %w", err)
	}
	varietyIDs := make(map[string]string, len(varieties))
	varietyKeys := make(map[[2]string]bool, len(varieties))
	for _, v := range varieties {
		varietyIDs[v.Name] = v.ID
		varietyKeys[[2]string{v.CropTypeID, v.Name}] = true
	}

	for _, ct := range types {
		typeID, ok := typeIDs[ct.Name]
		if !ok {
			now := s.now()
			typeID = newID()
			if err := tx.CreateCropType(ctx, &domain.CropType{
				ID: typeID, Name: ct.Name, NameEn: ct.NameEn, NameTh: ct.NameTh,
				Description: ct.Description, Icon: ct.Icon, CreatedAt: now, UpdatedAt: now,
			}); err != nil {
				return nil, fmt.Errorf("create crop type %s: %w", ct.Name, err)
			}
			typeIDs[ct.Name] = typeID
			res.CropTypes++
		}
		for _, v := range ct.Varieties {
			if varietyKeys[[2]string{typeID, v.Name}] {
				continue
			}
			now := s.now()
			id := newID()
			if err := tx.CreateVariety(ctx, &domain.CropVariety{
				ID: id, CropTypeID: typeID, Name: v.Name, NameEn: v.NameEn, NameTh: v.NameTh,
				Description: v.Description, GrowthPeriodDays: v.GrowthPeriodDays, CreatedAt: now, UpdatedAt: now,
			}); err != nil {
				return nil, fmt.Errorf("create variety %s: %w", v.Name, err)
			}
			varietyIDs[v.Name] = id
			varietyKeys[[2]string{typeID, v.Name}] = true
			res.Varieties++
		}
	}
	return varietyIDs, nil
}

func (s *Seeder) plans(ctx context.Context, tx repository.Repository, plans []Plan, varietyIDs map[string]string, res *Result) error {
	existing, err := tx.ListPlans(ctx)
	if err != nil {
		return fmt.Errorf("list plans: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.Name] = true
	}

	for _, p := range plans {
		if have[p.Name] {
			logger.Info("Standard plan already exists, skipping", zap.String("plan", p.Name))
			continue
		}
		now := s.now()
		plan := &domain.StandardPlan{ID: newID(), Name: p.Name, Description: p.Description, CreatedAt: now, UpdatedAt: now}
		if err := tx.CreatePlan(ctx, plan); err != nil {
			return fmt.Errorf("create plan %s: %w", p.Name, err)
		}
		for _, name := range p.Varieties {
			vid, ok := varietyIDs[name]
			if !ok {
				return fmt.Errorf("plan %s: unknown variety %q", p.Name, name)
			}
			if err := tx.LinkPlanVariety(ctx, plan.ID, vid); err != nil && !errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("link plan %s to %s: %w", p.Name, name, err)
			}
		}
		for _, t := range p.Tasks {
			typ, _ := domain.ParseActivityType(t.ActivityType)
			if err := tx.CreatePlanTask(ctx, &domain.PlanTask{
				ID: newID(), StandardPlanID: plan.ID, Title: t.Title, Description: t.Description,
				DayFromStart: t.DayFromStart, ActivityType: typ, CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("create task %s/%s: %w", p.Name, t.Title, err)
			}
		}
		have[p.Name] = true
		res.Plans++
	}
	return nil
}
