package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meditrack-api/internal/application/audit"
	"github.com/meditrack-api/internal/application/profile"
	"github.com/meditrack-api/internal/domain"
	"github.com/meditrack-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockProfileSvc struct{ mock.Mock }

func (m *mockProfileSvc) Create(ctx context.Context, req *domain.CreateProfileRequest) (*domain.MedicalProfile, error) {
	args := m.Called(ctx, req)
	if p, _ := args.Get(0).(*domain.MedicalProfile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileSvc) Get(ctx context.Context, nationalID string) (*domain.MedicalProfile, error) {
	args := m.Called(ctx, nationalID)
	if p, _ := args.Get(0).(*domain.MedicalProfile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileSvc) Update(ctx context.Context, nationalID string, req *domain.UpdateProfileRequest) (*domain.MedicalProfile, error) {
	args := m.Called(ctx, nationalID, req)
	if p, _ := args.Get(0).(*domain.MedicalProfile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileSvc) Delete(ctx context.Context, nationalID string) error {
	return m.Called(ctx, nationalID).Error(0)
}
func (m *mockProfileSvc) List(ctx context.Context, limit int32, cursor string) ([]domain.MedicalProfile, string, error) {
	args := m.Called(ctx, limit, cursor)
	if profiles, _ := args.Get(0).([]domain.MedicalProfile); profiles != nil {
		return profiles, args.String(1), args.Error(2)
	}
	return nil, args.String(1), args.Error(2)
}
func (m *mockProfileSvc) SyncHealthData(ctx context.Context, nationalID, ownerEmail string, payload map[string]interface{}) error {
	return m.Called(ctx, nationalID, ownerEmail, payload).Error(0)
}
func (m *mockProfileSvc) HealthData(ctx context.Context, nationalID string) (map[string]interface{}, error) {
	args := m.Called(ctx, nationalID)
	if hd, _ := args.Get(0).(map[string]interface{}); hd != nil {
		return hd, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockProfileSvc) Stats(ctx context.Context) (*profile.Stats, error) {
	args := m.Called(ctx)
	if st, _ := args.Get(0).(*profile.Stats); st != nil {
		return st, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAccessSvc struct{ mock.Mock }

func (m *mockAccessSvc) IssueOTP(ctx context.Context, sessionID string, p *domain.MedicalProfile, email string) error {
	return m.Called(ctx, sessionID, p, email).Error(0)
}
func (m *mockAccessSvc) VerifyOTP(ctx context.Context, sessionID string, p *domain.MedicalProfile, code, reason string) (*domain.DoctorGrant, error) {
	args := m.Called(ctx, sessionID, p, code, reason)
	if g, _ := args.Get(0).(*domain.DoctorGrant); g != nil {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAccessSvc) Grant(ctx context.Context, sessionID, profileID string) (*domain.DoctorGrant, error) {
	args := m.Called(ctx, sessionID, profileID)
	if g, _ := args.Get(0).(*domain.DoctorGrant); g != nil {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockAuditSvc struct{ mock.Mock }

func (m *mockAuditSvc) Record(ctx context.Context, profileID string, event domain.AccessEvent, actor audit.Actor) (*domain.AccessLogEntry, error) {
	args := m.Called(ctx, profileID, event, actor)
	if e, _ := args.Get(0).(*domain.AccessLogEntry); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockAuditSvc) Timeline(ctx context.Context, profileID string, limit int32) ([]domain.AccessLogEntry, error) {
	args := m.Called(ctx, profileID, limit)
	if entries, _ := args.Get(0).([]domain.AccessLogEntry); entries != nil {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGate struct{ mock.Mock }

func (m *mockGate) NotifyOwnerIfDue(ctx context.Context, p *domain.MedicalProfile, e *domain.AccessLogEntry) error {
	return m.Called(ctx, p, e).Error(0)
}

// --- helpers ---

const baseURL = "http://api.test"

func newAccessHandler(ps *mockProfileSvc, as *mockAccessSvc, au *mockAuditSvc, g *mockGate) *AccessHandler {
	return NewAccessHandler(ps, as, au, g, baseURL)
}

// withNid injects the chi URL param "nid" into the request context.
func withNid(r *http.Request, nid string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("nid", nid)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withSession stamps the request with a browser session ID.
func withSession(r *http.Request, sid string) *http.Request {
	return r.WithContext(middleware.WithSessionID(r.Context(), sid))
}

func fullProfile() *domain.MedicalProfile {
	return &domain.MedicalProfile{
		NationalID:        "V-1234567",
		FullName:          "Ana Torres",
		DateOfBirth:       "1985-04-12",
		Country:           "VE",
		Gender:            "F",
		BloodType:         "O+",
		Allergies:         "penicillin",
		MedicalConditions: "asthma",
		Medications:       "salbutamol",
		EmergencyContact:  "Luis Torres",
		EmergencyPhone:    "+584141234567",
		OwnerEmail:        "ana@example.com",
		HealthData:        map[string]interface{}{"hr": 72},
	}
}

func grantedAccess() (*mockAccessSvc, *domain.DoctorGrant) {
	g := &domain.DoctorGrant{Granted: true, VerifierEmail: "dr@h.org", Reason: "ER admission"}
	as := &mockAccessSvc{}
	as.On("Grant", mock.Anything, "s1", "V-1234567").Return(g, nil)
	return as, g
}

func anyRecord(au *mockAuditSvc, event domain.AccessEvent) {
	au.On("Record", mock.Anything, "V-1234567", event, mock.Anything).
		Return(&domain.AccessLogEntry{LogID: "l1", ProfileID: "V-1234567", EventType: event, CreatedAt: time.Now()}, nil)
}

// --- PublicView ---

func TestPublicView_HappyPath(t *testing.T) {
	ps := &mockProfileSvc{}
	au := &mockAuditSvc{}
	g := &mockGate{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	anyRecord(au, domain.EventPublicView)
	g.On("NotifyOwnerIfDue", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	h := newAccessHandler(ps, &mockAccessSvc{}, au, g)
	r := withNid(httptest.NewRequest(http.MethodGet, "/v1/profiles/V-1234567/public", nil), "V-1234567")
	rr := httptest.NewRecorder()
	h.PublicView(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Ana Torres", resp["full_name"])
	assert.Equal(t, "penicillin", resp["allergies"])
	// Limited field set: no clinical detail, no owner contacts.
	_, hasMeds := resp["medications"]
	_, hasOwner := resp["owner_email"]
	assert.False(t, hasMeds)
	assert.False(t, hasOwner)
	au.AssertExpectations(t)
	g.AssertExpectations(t)
}

func TestPublicView_NotFound(t *testing.T) {
	ps := &mockProfileSvc{}
	ps.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	h := newAccessHandler(ps, &mockAccessSvc{}, &mockAuditSvc{}, &mockGate{})
	r := withNid(httptest.NewRequest(http.MethodGet, "/v1/profiles/missing/public", nil), "missing")
	rr := httptest.NewRecorder()
	h.PublicView(rr, r)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPublicView_AuditFailureStillServes(t *testing.T) {
	ps := &mockProfileSvc{}
	au := &mockAuditSvc{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	au.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrConflict)

	h := newAccessHandler(ps, &mockAccessSvc{}, au, &mockGate{})
	r := withNid(httptest.NewRequest(http.MethodGet, "/v1/profiles/V-1234567/public", nil), "V-1234567")
	rr := httptest.NewRecorder()
	h.PublicView(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
}

// --- SendOTP ---

func TestSendOTP_NoSession(t *testing.T) {
	h := newAccessHandler(&mockProfileSvc{}, &mockAccessSvc{}, &mockAuditSvc{}, &mockGate{})
	body := bytes.NewBufferString(`{"email":"dr@h.org"}`)
	r := withNid(httptest.NewRequest(http.MethodPost, "/v1/profiles/V-1234567/access/send-otp", body), "V-1234567")
	rr := httptest.NewRecorder()
	h.SendOTP(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendOTP_InvalidBody(t *testing.T) {
	h := newAccessHandler(&mockProfileSvc{}, &mockAccessSvc{}, &mockAuditSvc{}, &mockGate{})
	r := httptest.NewRequest(http.MethodPost, "/v1/profiles/V-1234567/access/send-otp", bytes.NewBufferString("not-json"))
	r = withSession(withNid(r, "V-1234567"), "s1")
	rr := httptest.NewRecorder()
	h.SendOTP(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendOTP_InvalidEmail(t *testing.T) {
	ps := &mockProfileSvc{}
	as := &mockAccessSvc{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as.On("IssueOTP", mock.Anything, "s1", mock.Anything, "no-at-sign").Return(domain.ErrInvalidEmail)

	h := newAccessHandler(ps, as, &mockAuditSvc{}, &mockGate{})
	r := httptest.NewRequest(http.MethodPost, "/v1/profiles/V-1234567/access/send-otp", bytes.NewBufferString(`{"email":"no-at-sign"}`))
	r = withSession(withNid(r, "V-1234567"), "s1")
	rr := httptest.NewRecorder()
	h.SendOTP(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendOTP_HappyPath(t *testing.T) {
	ps := &mockProfileSvc{}
	as := &mockAccessSvc{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as.On("IssueOTP", mock.Anything, "s1", mock.Anything, "dr@h.org").Return(nil)

	h := newAccessHandler(ps, as, &mockAuditSvc{}, &mockGate{})
	r := httptest.NewRequest(http.MethodPost, "/v1/profiles/V-1234567/access/send-otp", bytes.NewBufferString(`{"email":"dr@h.org"}`))
	r = withSession(withNid(r, "V-1234567"), "s1")
	rr := httptest.NewRecorder()
	h.SendOTP(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotContains(t, resp.Message, "@") // never echo the code or the address
	as.AssertExpectations(t)
}

// --- VerifyOTP ---

func verifyReq(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/v1/profiles/V-1234567/access/verify-otp", bytes.NewBufferString(body))
	return withSession(withNid(r, "V-1234567"), "s1")
}

func TestVerifyOTP_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"no challenge", domain.ErrNoChallenge, http.StatusBadRequest},
		{"expired", domain.ErrChallengeExpired, http.StatusBadRequest},
		{"reason required", domain.ErrReasonRequired, http.StatusBadRequest},
		{"invalid code", domain.ErrInvalidCode, http.StatusUnauthorized},
		{"too many attempts", domain.ErrTooManyAttempts, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ps := &mockProfileSvc{}
			as := &mockAccessSvc{}
			ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
			as.On("VerifyOTP", mock.Anything, "s1", mock.Anything, "123456", "x").Return(nil, tc.err)

			h := newAccessHandler(ps, as, &mockAuditSvc{}, &mockGate{})
			rr := httptest.NewRecorder()
			h.VerifyOTP(rr, verifyReq(`{"access_code":"123456","reason":"x"}`))
			assert.Equal(t, tc.code, rr.Code)
		})
	}
}

func TestVerifyOTP_TrimsCode(t *testing.T) {
	ps := &mockProfileSvc{}
	as := &mockAccessSvc{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as.On("VerifyOTP", mock.Anything, "s1", mock.Anything, "123456", "triage").
		Return(&domain.DoctorGrant{Granted: true}, nil)

	h := newAccessHandler(ps, as, &mockAuditSvc{}, &mockGate{})
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, verifyReq(`{"access_code":"  123456  ","reason":"triage"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	as.AssertExpectations(t)
}

func TestVerifyOTP_SuccessReturnsDoctorURL(t *testing.T) {
	ps := &mockProfileSvc{}
	as := &mockAccessSvc{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as.On("VerifyOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&domain.DoctorGrant{Granted: true, VerifierEmail: "dr@h.org", Reason: "triage"}, nil)

	h := newAccessHandler(ps, as, &mockAuditSvc{}, &mockGate{})
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, verifyReq(`{"access_code":"123456","reason":"triage"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp VerifyEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, baseURL+"/v1/profiles/V-1234567/doctor", resp.DoctorURL)
}

// --- DoctorView ---

func TestDoctorView_NoGrant(t *testing.T) {
	ps := &mockProfileSvc{}
	as := &mockAccessSvc{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as.On("Grant", mock.Anything, "s1", "V-1234567").Return(nil, domain.ErrNotFound)

	h := newAccessHandler(ps, as, &mockAuditSvc{}, &mockGate{})
	r := withSession(withNid(httptest.NewRequest(http.MethodGet, "/v1/profiles/V-1234567/doctor", nil), "V-1234567"), "s1")
	rr := httptest.NewRecorder()
	h.DoctorView(rr, r)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	var resp ChallengeEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, baseURL+"/v1/profiles/V-1234567/access/send-otp", resp.SendOTPURL)
}

func TestDoctorView_ProfileNotFoundBeforeGrantCheck(t *testing.T) {
	ps := &mockProfileSvc{}
	as := &mockAccessSvc{}
	ps.On("Get", mock.Anything, "missing").Return(nil, domain.ErrNotFound)

	h := newAccessHandler(ps, as, &mockAuditSvc{}, &mockGate{})
	r := withSession(withNid(httptest.NewRequest(http.MethodGet, "/v1/profiles/missing/doctor", nil), "missing"), "s1")
	rr := httptest.NewRecorder()
	h.DoctorView(rr, r)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	as.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything)
}

func TestDoctorView_GrantedServesFullRecord(t *testing.T) {
	ps := &mockProfileSvc{}
	au := &mockAuditSvc{}
	g := &mockGate{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as, _ := grantedAccess()
	au.On("Record", mock.Anything, "V-1234567", domain.EventDoctorView, mock.MatchedBy(func(a audit.Actor) bool {
		return a.Email == "dr@h.org" && a.Reason == "ER admission"
	})).Return(&domain.AccessLogEntry{LogID: "l1"}, nil)
	g.On("NotifyOwnerIfDue", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	h := newAccessHandler(ps, as, au, g)
	r := withSession(withNid(httptest.NewRequest(http.MethodGet, "/v1/profiles/V-1234567/doctor", nil), "V-1234567"), "s1")
	rr := httptest.NewRecorder()
	h.DoctorView(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "salbutamol", resp["medications"])
	assert.Equal(t, "asthma", resp["medical_conditions"])
	// Owner contacts never reach the viewer.
	_, hasOwner := resp["owner_email"]
	_, hasPhone := resp["owner_phone"]
	assert.False(t, hasOwner)
	assert.False(t, hasPhone)
	au.AssertExpectations(t)
}

// --- DoctorHealthView ---

func TestDoctorHealthView_Granted(t *testing.T) {
	ps := &mockProfileSvc{}
	au := &mockAuditSvc{}
	g := &mockGate{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as, _ := grantedAccess()
	anyRecord(au, domain.EventDoctorHealthView)
	g.On("NotifyOwnerIfDue", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	h := newAccessHandler(ps, as, au, g)
	r := withSession(withNid(httptest.NewRequest(http.MethodGet, "/v1/profiles/V-1234567/doctor/health", nil), "V-1234567"), "s1")
	rr := httptest.NewRecorder()
	h.DoctorHealthView(rr, r)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, float64(72), resp["health_data"]["hr"])
	au.AssertExpectations(t)
}

// --- Export ---

func exportReq(query string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/v1/profiles/V-1234567/doctor/export"+query, nil)
	return withSession(withNid(r, "V-1234567"), "s1")
}

func TestExport_HTMLAttachment(t *testing.T) {
	ps := &mockProfileSvc{}
	au := &mockAuditSvc{}
	g := &mockGate{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as, _ := grantedAccess()
	anyRecord(au, domain.EventDownloadHTML)
	g.On("NotifyOwnerIfDue", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	h := newAccessHandler(ps, as, au, g)
	rr := httptest.NewRecorder()
	h.Export(rr, exportReq("?format=html"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "medical_profile_V-1234567.html")
	body := rr.Body.String()
	assert.Contains(t, body, "Ana Torres")
	assert.Contains(t, body, "salbutamol")
	assert.NotContains(t, body, "ana@example.com")
	au.AssertExpectations(t)
}

func TestExport_PDFNotImplementedButLogged(t *testing.T) {
	ps := &mockProfileSvc{}
	au := &mockAuditSvc{}
	g := &mockGate{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as, _ := grantedAccess()
	anyRecord(au, domain.EventDownloadPDF)
	g.On("NotifyOwnerIfDue", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	h := newAccessHandler(ps, as, au, g)
	rr := httptest.NewRecorder()
	h.Export(rr, exportReq("?format=pdf"))

	assert.Equal(t, http.StatusNotImplemented, rr.Code)
	au.AssertExpectations(t)
}

func TestExport_UnknownFormat(t *testing.T) {
	ps := &mockProfileSvc{}
	ps.On("Get", mock.Anything, "V-1234567").Return(fullProfile(), nil)
	as, _ := grantedAccess()

	h := newAccessHandler(ps, as, &mockAuditSvc{}, &mockGate{})
	rr := httptest.NewRecorder()
	h.Export(rr, exportReq("?format=docx"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
