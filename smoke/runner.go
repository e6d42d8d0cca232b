package smoke

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"

	insurance "github.com/goliatone/go-insurance"
)

const DefaultPassword = "password123"

// Step is the outcome of one scenario call
type Step struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report summarizes a scenario run
type Report struct {
	Steps    []Step `json:"steps"`
	Users    int    `json:"users"`
	Tokens   int    `json:"tokens"`
	Policies int    `json:"policies"`
	Claims   int    `json:"claims"`
	Reviewed int    `json:"reviewed"`
}

// Failed lists the steps that did not get the expected status
func (r *Report) Failed() []Step {
	return lo.Filter(r.Steps, func(s Step, _ int) bool { return !s.OK })
}

type Option func(*Runner)

// WithRunID makes registered emails unique so the scenario can run
// repeatedly against the same store
func WithRunID(id string) Option {
	return func(r *Runner) { r.runID = id }
}

func WithLogger(logger insurance.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithClock(clock insurance.Clock) Option {
	return func(r *Runner) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithClient replaces the resty client, the base URL is kept
func WithClient(client *resty.Client) Option {
	return func(r *Runner) {
		if client != nil {
			r.client = client
		}
	}
}

// Runner drives the API through the full patient, provider and
// administrator scenario: register, login, issue policies, submit and
// review claims.
type Runner struct {
	client *resty.Client
	logger insurance.Logger
	now    insurance.Clock
	runID  string

	report   *Report
	users    map[string]string
	tokens   map[string]string
	policies map[string][]string
	claims   map[string][]string
}

type persona struct {
	key     string
	name    string
	role    insurance.Role
	address string
}

var personas = []persona{
	{"patient1", "Patient One", insurance.RolePatient, "123 Patient St"},
	{"patient2", "Patient Two", insurance.RolePatient, "456 Patient Ave"},
	{"provider1", "Dr. Provider One", insurance.RoleProvider, "789 Provider Blvd"},
	{"provider2", "Dr. Provider Two", insurance.RoleProvider, "321 Provider Way"},
	{"admin1", "Admin One", insurance.RoleAdministrator, "654 Admin St"},
	{"admin2", "Admin Two", insurance.RoleAdministrator, "987 Admin Ave"},
}

// issuer maps each policy owner to the staff account that creates its policies
var issuer = map[string]string{
	"patient1":  "provider1",
	"patient2":  "provider2",
	"provider1": "admin1",
	"provider2": "admin2",
	"admin1":    "admin2",
	"admin2":    "admin1",
}

var claimAmounts = map[string][2]float64{
	"patient1":  {5000, 7500},
	"patient2":  {3000, 6000},
	"provider1": {4000, 5500},
	"provider2": {4500, 6500},
	"admin1":    {3500, 5000},
	"admin2":    {4200, 5800},
}

func NewRunner(baseURL string, opts ...Option) *Runner {
	r := &Runner{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		logger: insurance.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.client.SetBaseURL(baseURL)
	return r
}

func (r *Runner) email(key string) string {
	if r.runID == "" {
		return key + "@test.com"
	}
	return fmt.Sprintf("%s.%s@test.com", key, r.runID)
}

// Run executes the scenario. A transport failure aborts the run, any
// unexpected status is recorded as a failed step and the run goes on
// where later steps still make sense.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	r.report = &Report{}
	r.users = map[string]string{}
	r.tokens = map[string]string{}
	r.policies = map[string][]string{}
	r.claims = map[string][]string{}

	steps := []func(context.Context) error{
		r.health,
		r.register,
		r.login,
		r.me,
		r.createPolicies,
		r.listPolicies,
		r.submitClaims,
		r.listClaims,
		r.listUsers,
		r.reviewClaims,
		r.settleClaim,
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			return r.report, err
		}
	}

	r.report.Users = len(r.users)
	r.report.Tokens = len(r.tokens)
	r.report.Policies = lo.SumBy(lo.Values(r.policies), func(ids []string) int { return len(ids) })
	r.report.Claims = lo.SumBy(lo.Values(r.claims), func(ids []string) int { return len(ids) })

	r.logger.Info("smoke run finished",
		"users", r.report.Users,
		"policies", r.report.Policies,
		"claims", r.report.Claims,
		"failed", len(r.report.Failed()),
	)
	return r.report, nil
}

type envelope struct {
	Message  string            `json:"message"`
	Error    string            `json:"error"`
	Token    string            `json:"token"`
	User     map[string]any    `json:"user"`
	Users    []map[string]any  `json:"users"`
	Policy   map[string]any    `json:"policy"`
	Policies []map[string]any  `json:"policies"`
	Claim    map[string]any    `json:"claim"`
	Claims   []map[string]any  `json:"claims"`
	Status   string            `json:"status"`
	Count    int               `json:"count"`
}

func (r *Runner) call(ctx context.Context, name, method, path, token string, body any, want int) (*envelope, bool, error) {
	out := &envelope{}
	req := r.client.R().SetContext(ctx).SetResult(out).SetError(out)
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		r.logger.Error("smoke request failed", "step", name, "error", err)
		return nil, false, fmt.Errorf("%s: %w", name, err)
	}

	ok := resp.StatusCode() == want
	step := Step{Name: name, OK: ok, Status: resp.StatusCode()}
	if !ok {
		step.Detail = out.Error
		r.logger.Warn("smoke step failed", "step", name, "status", resp.StatusCode(), "error", out.Error)
	} else {
		r.logger.Debug("smoke step passed", "step", name, "status", resp.StatusCode())
	}
	r.report.Steps = append(r.report.Steps, step)
	return out, ok, nil
}

func (r *Runner) health(ctx context.Context) error {
	_, ok, err := r.call(ctx, "health", resty.MethodGet, "/", "", nil, 200)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("health check failed")
	}
	return nil
}

func (r *Runner) register(ctx context.Context) error {
	for _, p := range personas {
		out, ok, err := r.call(ctx, "register "+p.key, resty.MethodPost, "/api/auth/register", "", map[string]any{
			"email":     r.email(p.key),
			"password":  DefaultPassword,
			"full_name": p.name,
			"role":      string(p.role),
			"phone":     "+12015550123",
			"address":   p.address,
		}, 201)
		if err != nil {
			return err
		}
		if ok {
			r.users[p.key] = fmt.Sprint(out.User["id"])
		}
	}
	return nil
}

func (r *Runner) login(ctx context.Context) error {
	for _, p := range personas {
		if _, registered := r.users[p.key]; !registered {
			continue
		}
		out, ok, err := r.call(ctx, "login "+p.key, resty.MethodPost, "/api/auth/login", "", map[string]any{
			"email":    r.email(p.key),
			"password": DefaultPassword,
		}, 200)
		if err != nil {
			return err
		}
		if ok && out.Token != "" {
			r.tokens[p.key] = out.Token
		}
	}
	return nil
}

func (r *Runner) me(ctx context.Context) error {
	token, ok := r.tokens["patient1"]
	if !ok {
		return nil
	}
	_, _, err := r.call(ctx, "me patient1", resty.MethodGet, "/api/auth/me", token, nil, 200)
	return err
}

func (r *Runner) createPolicies(ctx context.Context) error {
	today := r.now().UTC()
	start := today.AddDate(0, -1, 0).Format(insurance.DateLayout)
	end := today.AddDate(1, 0, 0).Format(insurance.DateLayout)

	for _, p := range personas {
		owner, hasOwner := r.users[p.key]
		token, hasToken := r.tokens[issuer[p.key]]
		if !hasOwner || !hasToken {
			continue
		}
		for _, policyType := range []string{"Individual Health", "Family Plan"} {
			out, ok, err := r.call(ctx, "create policy "+p.key, resty.MethodPost, "/api/policies", token, map[string]any{
				"user_id":         owner,
				"policy_type":     policyType,
				"coverage_amount": 50000.00,
				"premium_amount":  500.00,
				"start_date":      start,
				"end_date":        end,
				"status":          "active",
			}, 201)
			if err != nil {
				return err
			}
			if ok {
				r.policies[p.key] = append(r.policies[p.key], fmt.Sprint(out.Policy["id"]))
			}
		}
	}
	return nil
}

func (r *Runner) listPolicies(ctx context.Context) error {
	for _, key := range []string{"patient1", "provider1"} {
		token, ok := r.tokens[key]
		if !ok {
			continue
		}
		if _, _, err := r.call(ctx, "list policies "+key, resty.MethodGet, "/api/policies", token, nil, 200); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) submitClaims(ctx context.Context) error {
	serviceDate := r.now().UTC().AddDate(0, 0, -7).Format(insurance.DateLayout)

	for _, p := range personas {
		token, ok := r.tokens[p.key]
		policies := r.policies[p.key]
		if !ok || len(policies) < 2 {
			continue
		}
		for i, amount := range claimAmounts[p.key] {
			out, ok, err := r.call(ctx, "submit claim "+p.key, resty.MethodPost, "/api/claims", token, map[string]any{
				"policy_id":         policies[i],
				"claim_amount":      amount,
				"diagnosis":         "Medical treatment",
				"treatment_details": "Standard medical procedure",
				"provider_name":     "City Hospital",
				"service_date":      serviceDate,
			}, 201)
			if err != nil {
				return err
			}
			if ok {
				r.claims[p.key] = append(r.claims[p.key], fmt.Sprint(out.Claim["id"]))
			}
		}
	}
	return nil
}

func (r *Runner) listClaims(ctx context.Context) error {
	for _, key := range []string{"patient1", "provider1"} {
		token, ok := r.tokens[key]
		if !ok {
			continue
		}
		if _, _, err := r.call(ctx, "list claims "+key, resty.MethodGet, "/api/claims", token, nil, 200); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) listUsers(ctx context.Context) error {
	if token, ok := r.tokens["admin1"]; ok {
		if _, _, err := r.call(ctx, "list users", resty.MethodGet, "/api/users", token, nil, 200); err != nil {
			return err
		}
	}
	if token, ok := r.tokens["patient1"]; ok {
		path := "/api/users/" + r.users["patient1"]
		if _, _, err := r.call(ctx, "get own user", resty.MethodGet, path, token, nil, 200); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) reviewClaims(ctx context.Context) error {
	claims := r.claims["patient1"]
	reviewers := []struct {
		key    string
		amount float64
	}{
		{"provider1", 4500},
		{"admin1", 7000},
	}

	for i, rv := range reviewers {
		token, ok := r.tokens[rv.key]
		if !ok || i >= len(claims) {
			continue
		}
		_, ok, err := r.call(ctx, "review claim by "+rv.key, resty.MethodPost, "/api/claims/"+claims[i]+"/review", token, map[string]any{
			"status":          "approved",
			"approved_amount": rv.amount,
			"review_notes":    "Claim reviewed and approved",
		}, 200)
		if err != nil {
			return err
		}
		if ok {
			r.report.Reviewed++
		}
	}
	return nil
}

func (r *Runner) settleClaim(ctx context.Context) error {
	token, ok := r.tokens["admin1"]
	if !ok {
		return nil
	}
	if claims := r.claims["patient1"]; len(claims) > 0 {
		if _, _, err := r.call(ctx, "mark claim paid", resty.MethodPatch, "/api/claims/"+claims[0]+"/status", token, map[string]any{"status": "paid"}, 200); err != nil {
			return err
		}
	}
	if policies := r.policies["patient1"]; len(policies) > 0 {
		if _, _, err := r.call(ctx, "update policy status", resty.MethodPatch, "/api/policies/"+policies[0]+"/status", token, map[string]any{"status": "active"}, 200); err != nil {
			return err
		}
	}
	return nil
}
