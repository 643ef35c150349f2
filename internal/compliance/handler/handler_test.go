package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/repository"
	"github.com/roadpass/roadpass/backend/go-services/internal/compliance/service"
	"github.com/roadpass/roadpass/backend/go-services/internal/storage"
	"github.com/roadpass/roadpass/backend/go-services/pkg/middleware"
	"github.com/stretchr/testify/require"
)

type fakeToken map[string]interface{}

func (t fakeToken) Claims(v interface{}) error {
	mm, ok := v.(*map[string]interface{})
	if !ok {
		return fmt.Errorf("unsupported claims type")
	}
	*mm = t
	return nil
}

// fakeVerifier treats the raw token as the subject; "reviewer" gets the reviewer role.
type fakeVerifier struct{}

func (fakeVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if raw == "reviewer" {
		return fakeToken{"sub": "rev-1", "roles": []interface{}{"compliance-reviewer"}}, nil
	}
	return fakeToken{"sub": raw}, nil
}

type discard struct{}

func (discard) Enqueue(string) {}

func newRouter(t *testing.T) *gin.Engine {
	return newRouterWith(t, nil)
}

func newRouterWith(t *testing.T, override func(*service.Deps)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := service.Deps{
		Catalog:   compliance.DefaultFieldCatalog(),
		Records:   repository.NewMemoryRepo(),
		Banks:     repository.NewMemoryInfoStore[compliance.BankInformation](),
		Companies: repository.NewMemoryInfoStore[compliance.CompanyInformation](),
		Store:     storage.NewMemoryStorage("test"),
		Reclaimer: discard{},
	}
	if override != nil {
		override(&deps)
	}
	svc := service.New(deps)
	g := gin.New()
	New(svc, 1<<20).Register(g.Group("/api/v1"), middleware.AuthMiddleware(fakeVerifier{}), "compliance-reviewer")
	return g
}

func do(g *gin.Engine, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func upload(g *gin.Engine, token, typ, name, contentType, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	h.Set("Content-Type", contentType)
	part, _ := mw.CreatePart(h)
	_, _ = part.Write([]byte(content))
	_ = mw.Close()
	return do(g, http.MethodPost, "/api/v1/drivers/me/artifacts/"+typ, token, &buf, mw.FormDataContentType())
}

func jsonBody(v interface{}) *bytes.Buffer {
	b, _ := json.Marshal(v)
	return bytes.NewBuffer(b)
}

func TestSubmitAndStatus(t *testing.T) {
	g := newRouter(t)

	w := upload(g, "driver-1", "criminal-record", "record.pdf", "application/pdf", "%PDF-1.4")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a compliance.Artifact
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	require.Equal(t, compliance.StatusSubmitted, a.Status)
	require.Equal(t, int64(1), a.Revision)
	require.NotEmpty(t, a.URL)

	w = do(g, http.MethodGet, "/api/v1/drivers/me/compliance", "driver-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var st compliance.ComplianceStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	require.Equal(t, "driver-1", st.DriverID)
	require.False(t, st.Eligibility.Eligible)
	require.NotContains(t, st.Eligibility.UnmetRequirements, compliance.Requirement("criminal-record"))

	// another driver sees nothing
	w = do(g, http.MethodGet, "/api/v1/drivers/me/artifacts/criminal-record/url", "driver-2", nil, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitErrors(t *testing.T) {
	g := newRouter(t)

	require.Equal(t, http.StatusUnauthorized, upload(g, "", "criminal-record", "a.pdf", "application/pdf", "x").Code)
	require.Equal(t, http.StatusBadRequest, upload(g, "driver-1", "passport", "a.pdf", "application/pdf", "x").Code)
	require.Equal(t, http.StatusBadRequest, upload(g, "driver-1", "criminal-record", "a.exe", "application/x-msdownload", "x").Code)

	w := do(g, http.MethodPost, "/api/v1/drivers/me/artifacts/criminal-record", "driver-1", jsonBody(gin.H{}), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)

	// octet-stream falls back to the extension
	require.Equal(t, http.StatusCreated, upload(g, "driver-1", "profile-photo", "me.png", "application/octet-stream", "png").Code)
}

type downStore struct{ *storage.MemoryStorage }

func (downStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return errors.New("dial tcp secret-host.internal:9000: connect: connection refused")
}

type downRepo struct{ *repository.MemoryRepo }

func (downRepo) Save(ctx context.Context, rec *compliance.Record) error {
	return errors.New("server selection error: mongo-0.secret-host.internal:27017 timed out")
}

func TestSubmitErrorsHideBackendDetail(t *testing.T) {
	g := newRouterWith(t, func(d *service.Deps) { d.Store = downStore{storage.NewMemoryStorage("test")} })
	w := upload(g, "driver-1", "criminal-record", "a.pdf", "application/pdf", "x")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.NotContains(t, w.Body.String(), "secret-host")
	require.JSONEq(t, `{"error":"storage temporarily unavailable"}`, w.Body.String())

	g = newRouterWith(t, func(d *service.Deps) { d.Records = downRepo{repository.NewMemoryRepo()} })
	w = upload(g, "driver-1", "criminal-record", "a.pdf", "application/pdf", "x")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.NotContains(t, w.Body.String(), "secret-host")
	require.JSONEq(t, `{"error":"service temporarily unavailable"}`, w.Body.String())
}

func TestClear(t *testing.T) {
	g := newRouter(t)
	require.Equal(t, http.StatusNotFound, do(g, http.MethodDelete, "/api/v1/drivers/me/artifacts/identity-front", "driver-1", nil, "").Code)
	require.Equal(t, http.StatusCreated, upload(g, "driver-1", "identity-front", "id.jpg", "image/jpeg", "jpg").Code)
	require.Equal(t, http.StatusNoContent, do(g, http.MethodDelete, "/api/v1/drivers/me/artifacts/identity-front", "driver-1", nil, "").Code)
}

func TestVerification(t *testing.T) {
	g := newRouter(t)
	path := "/api/v1/admin/drivers/driver-1/artifacts/criminal-record/verification"

	// drivers cannot review
	w := do(g, http.MethodPut, path, "driver-1", jsonBody(gin.H{"verified": true}), "application/json")
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(g, http.MethodPut, path, "reviewer", jsonBody(gin.H{"verified": true}), "application/json")
	require.Equal(t, http.StatusConflict, w.Code, "nothing submitted yet")

	require.Equal(t, http.StatusCreated, upload(g, "driver-1", "criminal-record", "r.pdf", "application/pdf", "v1").Code)
	require.Equal(t, http.StatusCreated, upload(g, "driver-1", "criminal-record", "r.pdf", "application/pdf", "v2").Code)

	w = do(g, http.MethodPut, path, "reviewer", jsonBody(gin.H{"verified": true, "revision": 1}), "application/json")
	require.Equal(t, http.StatusConflict, w.Code, "stale revision")
	require.Equal(t, "1", w.Header().Get("Retry-After"))

	w = do(g, http.MethodPut, path, "reviewer", jsonBody(gin.H{"verified": true, "revision": 2}), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var a compliance.Artifact
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	require.Equal(t, compliance.StatusVerified, a.Status)

	w = do(g, http.MethodPut, "/api/v1/admin/drivers/driver-1/artifacts/profile-photo/verification", "reviewer", jsonBody(gin.H{"verified": true}), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodPut, path, "reviewer", jsonBody(gin.H{"revision": 2}), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code, "verified is required")

	w = do(g, http.MethodGet, "/api/v1/admin/drivers/driver-1/compliance", "reviewer", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), `"status":"verified"`))
}

func TestBankAndCompanyInfo(t *testing.T) {
	g := newRouter(t)
	require.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/api/v1/drivers/me/bank-info", "driver-1", nil, "").Code)

	w := do(g, http.MethodPut, "/api/v1/drivers/me/bank-info", "driver-1", jsonBody(gin.H{"iban": "TR1"}), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodPut, "/api/v1/drivers/me/bank-info", "driver-1", jsonBody(gin.H{"accountHolderName": "Ada", "bankName": "Ziraat", "iban": "TR1"}), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(g, http.MethodGet, "/api/v1/drivers/me/bank-info", "driver-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Ziraat")
	require.Equal(t, http.StatusNoContent, do(g, http.MethodDelete, "/api/v1/drivers/me/bank-info", "driver-1", nil, "").Code)

	w = do(g, http.MethodPut, "/api/v1/drivers/me/company-info", "driver-1", jsonBody(gin.H{"companyName": "A", "taxNumber": "1", "taxOffice": "K", "address": "X"}), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, do(g, http.MethodGet, "/api/v1/drivers/me/company-info", "driver-1", nil, "").Code)
	require.Equal(t, http.StatusNoContent, do(g, http.MethodDelete, "/api/v1/drivers/me/company-info", "driver-1", nil, "").Code)
	require.Equal(t, http.StatusNotFound, do(g, http.MethodDelete, "/api/v1/drivers/me/company-info", "driver-1", nil, "").Code)
}

func TestStatusCode(t *testing.T) {
	cases := map[error]int{
		compliance.ErrValidation:             http.StatusBadRequest,
		compliance.ErrNotVerifiable:          http.StatusBadRequest,
		compliance.ErrNotFound:               http.StatusNotFound,
		compliance.ErrNotSubmitted:           http.StatusConflict,
		compliance.ErrConcurrentModification: http.StatusConflict,
		compliance.ErrStorageWriteFailed:     http.StatusServiceUnavailable,
		compliance.ErrUnavailable:            http.StatusServiceUnavailable,
		errors.New("boom"):                   http.StatusInternalServerError,
	}
	for err, want := range cases {
		require.Equal(t, want, StatusCode(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
}
