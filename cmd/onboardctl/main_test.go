package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agb-digital/onboarding/pkg/logger"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCommand(logger.Nop())
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()
	return out.String(), err
}

func TestFlowsList(t *testing.T) {
	out, err := execute(t, "", "flows", "list")
	require.NoError(t, err)

	assert.Contains(t, out, "kyc\t12 steps")
	assert.Contains(t, out, "review\t")
	assert.Contains(t, out, "signup\t")
}

func TestFlowsShow(t *testing.T) {
	out, err := execute(t, "", "flows", "show", "kyc", "--locale", "en")
	require.NoError(t, err)

	assert.Contains(t, out, "Marital status")
	assert.Contains(t, out, "documentType=passport")
	assert.Contains(t, out, "passport*")
	assert.Contains(t, out, "submit_application")
}

func TestFlowsShow_UnknownFlow(t *testing.T) {
	_, err := execute(t, "", "flows", "show", "loan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flow")
}

func TestUnsupportedLocale(t *testing.T) {
	_, err := execute(t, "", "flows", "list", "--locale", "de")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported locale")
}

func TestValidatePhone(t *testing.T) {
	out, err := execute(t, "", "validate", "phone", "213", "770123456")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	out, err = execute(t, "", "validate", "phone", "213", "12")
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, "770123456")
}

func TestValidatePassword(t *testing.T) {
	out, err := execute(t, "", "validate", "password", "Abcdef1!", "--locale", "en")
	require.NoError(t, err)
	assert.Contains(t, out, "strength: Strong (1.00)")

	out, err = execute(t, "", "validate", "password", "abc", "--locale", "en")
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, "strength: Weak")
}

func TestValidateEmailAndPostalCode(t *testing.T) {
	_, err := execute(t, "", "validate", "email", "jane@example.com")
	assert.NoError(t, err)

	_, err = execute(t, "", "validate", "email", "jane@")
	assert.ErrorIs(t, err, errInvalid)

	_, err = execute(t, "", "validate", "postal-code", "16000")
	assert.NoError(t, err)

	_, err = execute(t, "", "validate", "postal-code", "1600")
	assert.ErrorIs(t, err, errInvalid)
}

func TestRun_WalksAndAbandons(t *testing.T) {
	out, err := execute(t, "celibataire\nq\n", "run", "kyc", "--locale", "en")
	require.NoError(t, err)

	assert.Contains(t, out, "[1/12] Marital status")
	assert.Contains(t, out, "[2/12] Parentage")
	assert.Contains(t, out, "session abandoned")
}

func TestRun_ValidationErrorsStayOnScreen(t *testing.T) {
	out, err := execute(t, "\nq\n", "run", "kyc", "--locale", "en")
	require.NoError(t, err)

	assert.Contains(t, out, "STEP_BLOCKED")
	assert.Contains(t, out, "! situationFamiliale:")
	assert.Equal(t, 2, strings.Count(out, "[1/12] Marital status"))
}

func TestRun_UnknownFlow(t *testing.T) {
	_, err := execute(t, "", "run", "loan")
	require.Error(t, err)
}

func newBankAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/verification/application-progress", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer user-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Token expiré"}`))
			return
		}
		w.Write([]byte(`{"steps":[
			{"step":"registration","status":"completed"},
			{"step":"personal_info","status":"completed"},
			{"step":"document_upload","status":"in_progress"}
		]}`))
	})
	mux.HandleFunc("/transactions/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"amount":"2500.00","transaction_type":"deposit","description":"Salaire","created_at":"2026-05-01"},
			{"id":2,"amount":"120.5","transaction_type":"payment","description":"Facture","created_at":"2026-05-03"}
		]`))
	})
	mux.HandleFunc("/recommendations/offers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFacadeProgress(t *testing.T) {
	srv := newBankAPI(t)

	out, err := execute(t, "", "facade", "progress", "--facade-url", srv.URL, "--token", "user-token")
	require.NoError(t, err)
	assert.Contains(t, out, "22% complete, stage 3 of 9")
	assert.Contains(t, out, "document_upload")
	assert.Contains(t, out, "in_progress")
}

func TestFacadeProgress_RejectedToken(t *testing.T) {
	srv := newBankAPI(t)

	out, err := execute(t, "", "facade", "progress", "--facade-url", srv.URL, "--token", "stale")
	require.Error(t, err)
	assert.Contains(t, out, `"success": false`)
	assert.Contains(t, out, "Token expiré")
}

func TestFacadeTransactions(t *testing.T) {
	srv := newBankAPI(t)

	out, err := execute(t, "", "facade", "transactions", "--facade-url", srv.URL, "--token", "user-token")
	require.NoError(t, err)
	assert.Contains(t, out, "2500.00")
	assert.Contains(t, out, "-120.50")
}

func TestFacadeOffers_Outage(t *testing.T) {
	srv := newBankAPI(t)

	out, err := execute(t, "", "facade", "offers", "--facade-url", srv.URL, "--token", "user-token")
	require.Error(t, err)
	assert.Contains(t, out, "Erreur de connexion au serveur")
}
