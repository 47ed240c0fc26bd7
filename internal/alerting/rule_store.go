package alerting

import (
	"context"
	"strings"
	"time"

	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/datastore/v2/repository"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/validation"
)

const componentRuleStore = "alert-rule-store"

// RuleStore validates alert rules before they reach the repository. Every
// write leaves the store holding only rules that satisfy the validation
// rules of entities.AlertRule.
type RuleStore struct {
	repo     repository.AlertRuleRepository
	validate *validation.Validator
	log      logger.Logger
	onChange func(ctx context.Context)
}

// NewRuleStore creates a RuleStore.
func NewRuleStore(repo repository.AlertRuleRepository, v *validation.Validator, log logger.Logger) *RuleStore {
	if v == nil {
		v = validation.New()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RuleStore{repo: repo, validate: v, log: log.Module("alerting.store")}
}

// OnChange registers fn to run after every successful write, typically
// Engine.RefreshRules.
func (s *RuleStore) OnChange(fn func(ctx context.Context)) {
	s.onChange = fn
}

func (s *RuleStore) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx)
	}
}

// List returns every rule of an institution, oldest first.
func (s *RuleStore) List(ctx context.Context, institutionID string) ([]entities.AlertRule, error) {
	if strings.TrimSpace(institutionID) == "" {
		return nil, errors.Validation("institutionId is required",
			errors.FieldError{Field: "institutionId", Message: "institutionId is required"})
	}
	rules, err := s.repo.ListRules(ctx, repository.AlertRuleFilter{InstitutionID: institutionID})
	if err != nil {
		return nil, errors.Dependency(componentRuleStore, err)
	}
	if rules == nil {
		rules = []entities.AlertRule{}
	}
	return rules, nil
}

// Get returns one rule.
func (s *RuleStore) Get(ctx context.Context, id string) (*entities.AlertRule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	return rule, nil
}

// Create validates and persists a new rule. Client supplied id and
// timestamps are ignored.
func (s *RuleStore) Create(ctx context.Context, rule *entities.AlertRule) (*entities.AlertRule, error) {
	r := *rule
	r.ID = ""
	r.CreatedAt, r.UpdatedAt = time.Time{}, time.Time{}
	normalize(&r)
	if err := s.validate.Struct(r); err != nil {
		return nil, err
	}
	if err := s.repo.CreateRule(ctx, &r); err != nil {
		return nil, errors.Dependency(componentRuleStore, err)
	}
	s.log.Info("alert rule created",
		logger.String("rule_id", r.ID),
		logger.String("institution_id", r.InstitutionID),
		logger.String("type", r.Type))
	s.changed(ctx)
	return &r, nil
}

// Update merges a JSON patch onto the stored rule and replaces it. Nested
// objects merge key by key; arrays are replaced. The id and institutionId
// cannot change.
func (s *RuleStore) Update(ctx context.Context, id string, patch []byte) (*entities.AlertRule, error) {
	existing, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}

	r := *existing
	r.Notification.Recipients = append(entities.StringList(nil), existing.Notification.Recipients...)
	if err := validation.DecodeJSONBytes(patch, &r); err != nil {
		return nil, err
	}

	var fields []errors.FieldError
	if r.ID != existing.ID {
		fields = append(fields, errors.FieldError{Field: "id", Message: "id cannot be changed"})
	}
	if r.InstitutionID != existing.InstitutionID {
		fields = append(fields, errors.FieldError{Field: "institutionId", Message: "institutionId cannot be changed"})
	}
	if len(fields) > 0 {
		return nil, errors.Validation("validation failed: "+errors.FormatFields(fields), fields...)
	}
	r.CreatedAt, r.UpdatedAt = existing.CreatedAt, existing.UpdatedAt

	normalize(&r)
	if err := s.validate.Struct(r); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRule(ctx, &r); err != nil {
		return nil, s.mapErr(err, id)
	}

	updated, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	s.log.Info("alert rule updated", logger.String("rule_id", id))
	s.changed(ctx)
	return updated, nil
}

// Delete removes a rule. Deleting a missing rule is a not-found error.
func (s *RuleStore) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return s.mapErr(err, id)
	}
	s.log.Info("alert rule deleted", logger.String("rule_id", id))
	s.changed(ctx)
	return nil
}

// Toggle enables or disables a rule and returns it.
func (s *RuleStore) Toggle(ctx context.Context, id string, enabled bool) (*entities.AlertRule, error) {
	if err := s.repo.ToggleRule(ctx, id, enabled); err != nil {
		return nil, s.mapErr(err, id)
	}
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	s.changed(ctx)
	return rule, nil
}

// SeedDefaults creates the default rules an institution is missing, matched
// by name, and returns how many were created.
func (s *RuleStore) SeedDefaults(ctx context.Context, institutionID, lang string) (int, error) {
	defaults := DefaultRules(institutionID, lang)
	var created int
	for i := range defaults {
		count, err := s.repo.CountRulesByName(ctx, institutionID, defaults[i].Name)
		if err != nil {
			return created, errors.Dependency(componentRuleStore, err)
		}
		if count > 0 {
			continue
		}
		normalize(&defaults[i])
		if err := s.validate.Struct(defaults[i]); err != nil {
			return created, err
		}
		if err := s.repo.CreateRule(ctx, &defaults[i]); err != nil {
			return created, errors.Dependency(componentRuleStore, err)
		}
		created++
	}
	if created > 0 {
		s.log.Info("seeded default alert rules",
			logger.String("institution_id", institutionID),
			logger.Int("created", created))
		s.changed(ctx)
	}
	return created, nil
}

func (s *RuleStore) mapErr(err error, id string) error {
	if errors.Is(err, repository.ErrAlertRuleNotFound) {
		return errors.New(err).
			Category(errors.CategoryNotFound).
			Component(componentRuleStore).
			Context("rule_id", id).
			Build()
	}
	return errors.Dependency(componentRuleStore, err)
}

// normalize trims the name and recipients and drops duplicate recipients,
// keeping first occurrences in order. Blank recipients are kept so that
// validation reports them.
func normalize(r *entities.AlertRule) {
	r.Name = strings.TrimSpace(r.Name)
	r.InstitutionID = strings.TrimSpace(r.InstitutionID)

	if r.Notification.Recipients == nil {
		r.Notification.Recipients = entities.StringList{}
		return
	}
	seen := make(map[string]struct{}, len(r.Notification.Recipients))
	out := make(entities.StringList, 0, len(r.Notification.Recipients))
	for _, rc := range r.Notification.Recipients {
		rc = strings.TrimSpace(rc)
		if rc != "" {
			if _, dup := seen[rc]; dup {
				continue
			}
			seen[rc] = struct{}{}
		}
		out = append(out, rc)
	}
	r.Notification.Recipients = out
}
