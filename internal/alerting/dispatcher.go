package alerting

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/errors"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/edupresencia/fichai/internal/notification"
	"github.com/edupresencia/fichai/internal/validation"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	componentDispatcher = "alert-dispatcher"

	defaultSendTimeout   = 20 * time.Second
	defaultMaxConcurrent = 4

	dateLayout = "02/01/2006"
	timeLayout = "15:04"
)

// Directory resolves employees for recipient addresses and template values.
type Directory interface {
	GetEmployee(ctx context.Context, institutionID, id string) (*entities.Employee, error)
}

// CommunicationWriter stores internal inbox messages.
type CommunicationWriter interface {
	Create(ctx context.Context, msg *entities.Communication) error
}

// DeliveryReport summarizes one dispatch of a rule.
type DeliveryReport struct {
	Attempt        int      `json:"attempt"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
	Recipients     []string `json:"recipients"`
	InternalSent   int      `json:"internalSent"`
	InternalFailed int      `json:"internalFailed"`
	EmailSent      int      `json:"emailSent"`
	EmailFailed    int      `json:"emailFailed"`
	EmailSkipped   []string `json:"emailSkipped,omitempty"`
}

// Status classifies the report as sent, partial or failed.
func (r *DeliveryReport) Status() string {
	failed := r.InternalFailed + r.EmailFailed
	ok := r.InternalSent + r.EmailSent
	switch {
	case failed == 0:
		return entities.DeliveryStatusSent
	case ok == 0:
		return entities.DeliveryStatusFailed
	default:
		return entities.DeliveryStatusPartial
	}
}

// DispatcherConfig is the read-only configuration of a Dispatcher.
type DispatcherConfig struct {
	Email    conf.EmailSettings
	Language string
}

// Dispatcher renders a fired rule and fans it out to the internal inbox and
// email.
type Dispatcher struct {
	sender        notification.EmailSender
	directory     Directory
	comms         CommunicationWriter
	validate      *validation.Validator
	limiter       *rate.Limiter
	maxConcurrent int
	timeout       time.Duration
	lang          string
	log           logger.Logger
}

// NewDispatcher creates a Dispatcher. A nil sender disables email and a nil
// comms disables internal messages.
func NewDispatcher(
	cfg DispatcherConfig,
	sender notification.EmailSender,
	directory Directory,
	comms CommunicationWriter,
	log logger.Logger,
) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if r := cfg.Email.RatePerSecond; r > 0 {
		limiter = rate.NewLimiter(rate.Limit(r), max(1, int(r)))
	}
	maxConcurrent := cfg.Email.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	timeout := cfg.Email.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{
		sender:        sender,
		directory:     directory,
		comms:         comms,
		validate:      validation.New(),
		limiter:       limiter,
		maxConcurrent: maxConcurrent,
		timeout:       timeout,
		lang:          MatchLanguage(cfg.Language),
		log:           log.Module("alerting.dispatcher"),
	}
}

// Dispatch delivers rule for event. Internal messages are written before
// any email is attempted; email failures never undo them. The returned
// error joins every delivery failure.
func (d *Dispatcher) Dispatch(ctx context.Context, rule *entities.AlertRule, event *TriggerEvent, attempt int) (*DeliveryReport, error) {
	employeeName := d.employeeName(ctx, event)

	tmpl := rule.Notification.EmailTemplate
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultBody(d.lang, rule.Type)
	}
	report := &DeliveryReport{
		Attempt:    attempt,
		Subject:    RenderTemplate(DefaultSubject(d.lang), rule, event, employeeName),
		Body:       RenderTemplate(tmpl, rule, event, employeeName),
		Recipients: ResolveRecipients(rule.Notification.Recipients, event.EmployeeID),
	}

	var errs []error
	if rule.Notification.Internal {
		errs = append(errs, d.sendInternal(ctx, rule, event, report)...)
	}
	if rule.Notification.Email {
		errs = append(errs, d.sendEmail(ctx, event, report)...)
	}

	d.log.Debug("alert dispatched",
		logger.String("rule_id", rule.ID),
		logger.String("employee_id", event.EmployeeID),
		logger.Int("attempt", attempt),
		logger.String("status", report.Status()))

	if len(errs) > 0 {
		return report, errors.New(errors.Join(errs...)).
			Category(errors.CategoryDependency).
			Component(componentDispatcher).
			Context("rule_id", rule.ID).
			Build()
	}
	return report, nil
}

func (d *Dispatcher) employeeName(ctx context.Context, event *TriggerEvent) string {
	if d.directory != nil {
		if emp, err := d.directory.GetEmployee(ctx, event.InstitutionID, event.EmployeeID); err == nil && emp.FullName != "" {
			return emp.FullName
		}
	}
	if event.EmployeeName != "" {
		return event.EmployeeName
	}
	return event.EmployeeID
}

func (d *Dispatcher) sendInternal(ctx context.Context, rule *entities.AlertRule, event *TriggerEvent, report *DeliveryReport) []error {
	if d.comms == nil {
		d.log.Warn("internal notifications not configured", logger.String("rule_id", rule.ID))
		return nil
	}
	var errs []error
	for _, rc := range report.Recipients {
		if isAddress(rc) {
			continue
		}
		msg := &entities.Communication{
			InstitutionID: event.InstitutionID,
			SenderID:      entities.SystemSender,
			RecipientID:   rc,
			MessageType:   entities.MessageTypeAlert,
			Subject:       report.Subject,
			Message:       report.Body,
			Status:        entities.CommunicationStatusSent,
			Priority:      entities.PriorityHigh,
			RuleID:        rule.ID,
		}
		if err := d.comms.Create(ctx, msg); err != nil {
			report.InternalFailed++
			errs = append(errs, fmt.Errorf("internal message to %s: %w", rc, err))
			continue
		}
		report.InternalSent++
	}
	return errs
}

type emailTarget struct {
	name    string
	address string
}

// emailTargets resolves recipients to addresses. Literal addresses are used
// as given; other recipients are employee IDs looked up in the directory.
func (d *Dispatcher) emailTargets(ctx context.Context, institutionID string, recipients []string) (targets []emailTarget, skipped []string) {
	for _, rc := range recipients {
		if isAddress(rc) {
			if d.validate.IsEmail(rc) {
				targets = append(targets, emailTarget{address: rc})
			} else {
				skipped = append(skipped, rc)
			}
			continue
		}
		if d.directory == nil {
			skipped = append(skipped, rc)
			continue
		}
		emp, err := d.directory.GetEmployee(ctx, institutionID, rc)
		if err != nil || !d.validate.IsEmail(emp.Email) {
			skipped = append(skipped, rc)
			continue
		}
		targets = append(targets, emailTarget{name: emp.FullName, address: emp.Email})
	}
	return targets, skipped
}

func (d *Dispatcher) sendEmail(ctx context.Context, event *TriggerEvent, report *DeliveryReport) []error {
	targets, skipped := d.emailTargets(ctx, event.InstitutionID, report.Recipients)
	report.EmailSkipped = append(report.EmailSkipped, skipped...)
	if d.sender == nil {
		for _, t := range targets {
			report.EmailSkipped = append(report.EmailSkipped, t.address)
		}
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(d.maxConcurrent)
	for _, t := range targets {
		g.Go(func() error {
			err := d.limiter.Wait(ctx)
			if err == nil {
				sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
				err = d.sender.Send(sendCtx, notification.NewEmailMessage(t.name, t.address, report.Subject, report.Body))
				cancel()
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.EmailSent++
			case errors.Is(err, notification.ErrEmailDisabled):
				report.EmailSkipped = append(report.EmailSkipped, t.address)
			default:
				report.EmailFailed++
				errs = append(errs, fmt.Errorf("email to %s: %w", t.address, err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// ResolveRecipients replaces RecipientSelf with the triggering employee and
// drops duplicates, keeping the first occurrence.
func ResolveRecipients(recipients []string, employeeID string) []string {
	seen := make(map[string]struct{}, len(recipients))
	out := make([]string, 0, len(recipients))
	for _, rc := range recipients {
		if rc == RecipientSelf {
			rc = employeeID
		}
		if rc == "" {
			continue
		}
		if _, dup := seen[rc]; dup {
			continue
		}
		seen[rc] = struct{}{}
		out = append(out, rc)
	}
	return out
}

func isAddress(recipient string) bool {
	return strings.Contains(recipient, "@")
}

// RenderTemplate substitutes the known placeholders in tmpl. Unknown
// placeholders are left as written.
func RenderTemplate(tmpl string, rule *entities.AlertRule, event *TriggerEvent, employeeName string) string {
	delay := event.MeasuredValue
	if m, err := ToMinutes(event.MeasuredValue, event.MeasuredUnit); err == nil {
		delay = m
	}
	pairs := []string{
		PlaceholderEmployeeName, employeeName,
		PlaceholderEmployeeID, event.EmployeeID,
		PlaceholderDelayMinutes, formatNumber(delay),
		PlaceholderMeasuredValue, formatNumber(event.MeasuredValue),
		PlaceholderMeasuredUnit, event.MeasuredUnit,
		PlaceholderThreshold, formatNumber(rule.Condition.Threshold),
		PlaceholderUnit, rule.Condition.Unit,
		PlaceholderRuleName, rule.Name,
		PlaceholderRuleType, rule.Type,
		PlaceholderDate, event.OccurredAt.Format(dateLayout),
		PlaceholderTime, event.OccurredAt.Format(timeLayout),
		PlaceholderInstitutionID, event.InstitutionID,
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// formatNumber prints v with at most two decimals and no trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
