package positions

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vkarpenko/gpushare/internal/handlers/middleware"
	"github.com/vkarpenko/gpushare/internal/models"
	"github.com/vkarpenko/gpushare/internal/testutil"
	"github.com/vkarpenko/gpushare/tests/e2e"
)

const (
	PlansURL     = "/api/plans"
	PositionsURL = "/api/positions"
)

func Test_Positions(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeWithTx(pg.Pool, t, func(tx pgx.Tx, srvURL string, s e2e.Services) {
		user, err := s.UserService.Register(t.Context(), "test-user")
		require.NoError(t, err)

		plan, err := s.Storage.Plan().CreatePlan(t.Context(), models.Plan{
			Name:             "A100 shared rig",
			HashRate:         decimal.NewFromInt(400),
			PricePerFraction: decimal.NewFromInt(250),
			CycleMonths:      2,
			Active:           true,
		})
		require.NoError(t, err)

		doJSON := func(t *testing.T, method string, url string, body string) (*http.Response, string) {
			req, err := http.NewRequest(method, srvURL+url, strings.NewReader(body))
			require.NoError(t, err, "failed to create request")
			req.Header.Set(middleware.HeaderUserID, user.ID.String())

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err, "failed to send request")
			defer resp.Body.Close() // nolint:errcheck

			respBody, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "failed to read response body")
			return resp, string(respBody)
		}

		t.Run("list plans without identity", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				resp, err := http.Get(srvURL + PlansURL)
				require.NoError(t, err)
				defer resp.Body.Close() // nolint:errcheck

				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)

				require.Equal(t, http.StatusOK, resp.StatusCode)
				require.Contains(t, string(body), "A100 shared rig")
			})
		})

		t.Run("buy and list position", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				reqBody := fmt.Sprintf(`{"plan_id": %q, "gpu_fraction": "0.25"}`, plan.ID)

				resp, body := doJSON(t, http.MethodPost, PositionsURL, reqBody)

				require.Equalf(t, http.StatusCreated, resp.StatusCode, "Body: %s", body)
				require.Contains(t, body, `"gpu_fraction":"0.25"`)
				require.Contains(t, body, `"hash_rate":400`)
				require.Contains(t, body, `"status":"ACTIVE"`)

				resp, body = doJSON(t, http.MethodGet, PositionsURL, "")
				require.Equal(t, http.StatusOK, resp.StatusCode)
				require.Contains(t, body, plan.ID.String())
			})
		})

		t.Run("buy whole gpu allowed", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				reqBody := fmt.Sprintf(`{"plan_id": %q, "gpu_fraction": "1"}`, plan.ID)

				resp, body := doJSON(t, http.MethodPost, PositionsURL, reqBody)

				require.Equalf(t, http.StatusCreated, resp.StatusCode, "Body: %s", body)
			})
		})

		t.Run("buy more than gpu rejected", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				reqBody := fmt.Sprintf(`{"plan_id": %q, "gpu_fraction": "1.5"}`, plan.ID)

				resp, _ := doJSON(t, http.MethodPost, PositionsURL, reqBody)

				require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			})
		})

		t.Run("buy unknown plan", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				reqBody := fmt.Sprintf(`{"plan_id": %q, "gpu_fraction": "0.5"}`, uuid.New())

				resp, _ := doJSON(t, http.MethodPost, PositionsURL, reqBody)

				require.Equal(t, http.StatusNotFound, resp.StatusCode)
			})
		})

		t.Run("snapshots of unknown position", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				resp, _ := doJSON(t, http.MethodGet, PositionsURL+"/"+uuid.NewString()+"/snapshots", "")

				require.Equal(t, http.StatusNotFound, resp.StatusCode)
			})
		})
	})
}
