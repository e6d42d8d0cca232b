package insurance_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	insurance "github.com/goliatone/go-insurance"
	"github.com/goliatone/go-insurance/report"
	"github.com/goliatone/go-insurance/repository"
)

type apiClient struct {
	t   *testing.T
	app *fiber.App
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()

	logger := insurance.NopLogger()
	repos := repository.NewMemoryManager(repository.WithClock(fixedClock))
	svc := insurance.NewService(repos, insurance.ServiceConfig{
		SigningKey:       []byte("http-secret"),
		BcryptCost:       4,
		Attempts:         repository.NewMemoryAttempts(fixedClock),
		MaxLoginAttempts: 5,
		LoginCooldown:    time.Minute,
		Exporter:         report.NewXLSXExporter(),
		Logger:           logger,
		Clock:            fixedClock,
	})

	app := insurance.NewApp(insurance.AppConfig{Logger: logger})
	svc.Mount(app)
	return &apiClient{t: t, app: app}
}

func (a *apiClient) raw(method, path, token string, body []byte) *http.Response {
	a.t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	return resp
}

func (a *apiClient) do(method, path, token string, payload any) (int, map[string]any) {
	a.t.Helper()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(a.t, err)
	}

	resp := a.raw(method, path, token, body)
	defer resp.Body.Close()

	out := map[string]any{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if len(data) > 0 {
		require.NoError(a.t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

// signup registers and logs in, returning the account id and token
func (a *apiClient) signup(email string, role insurance.Role) (string, string) {
	a.t.Helper()

	status, body := a.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":     email,
		"password":  testPassword,
		"full_name": "Person " + string(role),
		"role":      string(role),
	})
	require.Equal(a.t, http.StatusCreated, status, body)
	id := body["user"].(map[string]any)["id"].(string)

	status, body = a.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(a.t, http.StatusOK, status, body)
	return id, body["token"].(string)
}

func policyPayload(owner string) map[string]any {
	return map[string]any{
		"user_id":         owner,
		"policy_type":     "Individual Health",
		"coverage_amount": 50000,
		"premium_amount":  500,
		"start_date":      "2025-01-01",
		"end_date":        "2025-12-31",
	}
}

func claimPayload(policy string, amount float64) map[string]any {
	return map[string]any{
		"policy_id":         policy,
		"claim_amount":      amount,
		"diagnosis":         "Medical treatment",
		"treatment_details": "Standard medical procedure",
		"provider_name":     "City Hospital",
		"service_date":      "2025-06-01",
	}
}

func TestHTTP_Health(t *testing.T) {
	api := newAPI(t)

	status, body := api.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Healthcare Insurance API is running", body["message"])
	assert.Equal(t, insurance.APIVersion, body["version"])
	assert.Equal(t, "healthy", body["status"])

	status, body = api.do(http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Endpoint not found", body["error"])
}

func TestHTTP_AuthFlow(t *testing.T) {
	api := newAPI(t)
	id, token := api.signup("patient@example.com", insurance.RolePatient)

	status, body := api.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]any)
	assert.Equal(t, id, user["id"])
	assert.Equal(t, "patient", user["role"])
	assert.NotContains(t, user, "password_hash")

	t.Run("duplicate registration", func(t *testing.T) {
		status, body := api.do(http.MethodPost, "/api/auth/register", "", map[string]any{
			"email": "PATIENT@example.com", "password": testPassword, "full_name": "Again",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "Email already exists", body["error"])
	})

	t.Run("validation details", func(t *testing.T) {
		status, body := api.do(http.MethodPost, "/api/auth/register", "", map[string]any{
			"email": "bad", "password": testPassword, "full_name": "Bad Email",
		})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid email format", body["error"])
		assert.Equal(t, insurance.TextCodeValidation, body["code"])
		assert.Contains(t, body["details"], "email")
	})

	t.Run("empty body", func(t *testing.T) {
		resp := api.raw(http.MethodPost, "/api/auth/register", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad credentials", func(t *testing.T) {
		status, body := api.do(http.MethodPost, "/api/auth/login", "", map[string]any{
			"email": "patient@example.com", "password": "nope-nope",
		})
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Invalid email or password", body["error"])
	})

	t.Run("missing and malformed tokens", func(t *testing.T) {
		status, body := api.do(http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Authorization token is missing", body["error"])

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Token abc")
		resp, err := api.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		status, _ = api.do(http.MethodGet, "/api/auth/me", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
	})
}

func TestHTTP_UsersAccess(t *testing.T) {
	api := newAPI(t)
	patientID, patient := api.signup("patient@example.com", insurance.RolePatient)
	otherID, _ := api.signup("other@example.com", insurance.RolePatient)
	_, provider := api.signup("provider@example.com", insurance.RoleProvider)
	_, admin := api.signup("admin@example.com", insurance.RoleAdministrator)

	status, _ := api.do(http.MethodGet, "/api/users", patient, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := api.do(http.MethodGet, "/api/users", provider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 4, body["count"])

	status, _ = api.do(http.MethodGet, "/api/users/"+patientID, patient, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = api.do(http.MethodGet, "/api/users/"+otherID, patient, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "You can only view your own profile", body["error"])

	status, _ = api.do(http.MethodGet, "/api/users/not-a-uuid", provider, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = api.do(http.MethodPut, "/api/users/"+patientID, patient, map[string]any{"role": "administrator"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Only administrators can change user roles", body["error"])

	status, body = api.do(http.MethodPut, "/api/users/"+patientID, patient, map[string]any{"full_name": "New Name"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User updated successfully", body["message"])

	status, _ = api.do(http.MethodPost, "/api/users/"+otherID+"/deactivate", provider, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.do(http.MethodPost, "/api/users/"+otherID+"/deactivate", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["user"].(map[string]any)["is_active"])

	status, body = api.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "other@example.com", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "User account is deactivated", body["error"])

	status, _ = api.do(http.MethodPost, "/api/users/"+otherID+"/activate", admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestHTTP_PolicyAndClaimLifecycle(t *testing.T) {
	api := newAPI(t)
	patientID, patient := api.signup("patient@example.com", insurance.RolePatient)
	otherID, other := api.signup("other@example.com", insurance.RolePatient)
	_, provider := api.signup("provider@example.com", insurance.RoleProvider)
	_, admin := api.signup("admin@example.com", insurance.RoleAdministrator)

	status, _ := api.do(http.MethodPost, "/api/policies", patient, policyPayload(patientID))
	assert.Equal(t, http.StatusForbidden, status)

	status, body := api.do(http.MethodPost, "/api/policies", provider, policyPayload(patientID))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Policy created successfully", body["message"])
	policyID := body["policy"].(map[string]any)["id"].(string)

	status, body = api.do(http.MethodPost, "/api/policies", provider, policyPayload(otherID))
	require.Equal(t, http.StatusCreated, status, body)
	otherPolicy := body["policy"].(map[string]any)["id"].(string)

	bad := policyPayload(patientID)
	bad["end_date"] = "2024-01-01"
	status, body = api.do(http.MethodPost, "/api/policies", provider, bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "End date must be after start date", body["error"])

	status, body = api.do(http.MethodGet, "/api/policies", patient, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = api.do(http.MethodGet, "/api/policies?user_id="+otherID, provider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = api.do(http.MethodGet, "/api/policies?payer_program=medicare", provider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, body["count"])

	status, _ = api.do(http.MethodGet, "/api/policies?payer_program=private", provider, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodGet, "/api/policies?user_id=nope", provider, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(http.MethodGet, "/api/policies/"+otherPolicy, patient, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.do(http.MethodGet, "/api/policies/programs", provider, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["commercial"].(map[string]any)["total"])

	status, body = api.do(http.MethodPut, "/api/policies/"+policyID, provider, map[string]any{"plan_name": "Gold", "policy_number": "POL0000000000"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Gold", body["policy"].(map[string]any)["plan_name"])
	assert.NotEqual(t, "POL0000000000", body["policy"].(map[string]any)["policy_number"])

	// claims
	status, body = api.do(http.MethodPost, "/api/claims", patient, claimPayload(otherPolicy, 100))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "You can only submit claims for your own policies", body["error"])

	status, body = api.do(http.MethodPost, "/api/claims", patient, claimPayload(policyID, 5000))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "Claim submitted successfully", body["message"])
	claimID := body["claim"].(map[string]any)["id"].(string)

	status, body = api.do(http.MethodPost, "/api/claims", other, claimPayload(otherPolicy, 250))
	require.Equal(t, http.StatusCreated, status, body)
	otherClaim := body["claim"].(map[string]any)["id"].(string)

	status, body = api.do(http.MethodGet, "/api/claims", patient, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = api.do(http.MethodGet, "/api/claims", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, _ = api.do(http.MethodGet, "/api/claims/"+otherClaim, patient, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodPost, "/api/claims/"+claimID+"/review", patient, map[string]any{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.do(http.MethodPost, "/api/claims/"+claimID+"/review", provider, map[string]any{"approved_amount": 10})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Status is required for review", body["error"])

	status, body = api.do(http.MethodPost, "/api/claims/"+claimID+"/review", provider, map[string]any{"status": "approved", "approved_amount": 6000})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Approved amount cannot exceed claim amount", body["error"])

	status, body = api.do(http.MethodPost, "/api/claims/"+claimID+"/review", provider, map[string]any{
		"status": "approved", "approved_amount": 4500, "review_notes": "ok",
	})
	require.Equal(t, http.StatusOK, status, body)
	reviewed := body["claim"].(map[string]any)
	assert.Equal(t, "approved", reviewed["status"])
	assert.EqualValues(t, 4500, reviewed["approved_amount"])
	assert.Equal(t, "ok", reviewed["review_notes"])

	status, _ = api.do(http.MethodPatch, "/api/claims/"+claimID+"/status", provider, map[string]any{"status": "paid"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = api.do(http.MethodPatch, "/api/claims/"+claimID+"/status", admin, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Status is required", body["error"])

	status, body = api.do(http.MethodPatch, "/api/claims/"+claimID+"/status", admin, map[string]any{"status": "paid"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "paid", body["claim"].(map[string]any)["status"])

	status, body = api.do(http.MethodPatch, "/api/policies/"+policyID+"/status", admin, map[string]any{"status": "suspended"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Policy status updated successfully", body["message"])

	status, body = api.do(http.MethodPost, "/api/claims", patient, claimPayload(policyID, 100))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cannot submit claim for inactive policy", body["error"])
}

func TestHTTP_ExportClaims(t *testing.T) {
	api := newAPI(t)
	patientID, patient := api.signup("patient@example.com", insurance.RolePatient)
	_, provider := api.signup("provider@example.com", insurance.RoleProvider)

	_, body := api.do(http.MethodPost, "/api/policies", provider, policyPayload(patientID))
	policyID := body["policy"].(map[string]any)["id"].(string)
	status, _ := api.do(http.MethodPost, "/api/claims", patient, claimPayload(policyID, 1200))
	require.Equal(t, http.StatusCreated, status)

	resp := api.raw(http.MethodGet, "/api/claims/export", patient, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = api.raw(http.MethodGet, "/api/claims/export", provider, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "claims-20250615-100000.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "submitted", rows[1][3])
}
