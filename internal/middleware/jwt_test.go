package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/cinego/booking/internal/utils"
)

const testSecret = "unit-test-secret"

func protectedEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
    e := echo.New()
    g := e.Group("/v1")
    g.Use(mw...)
    g.GET("/ping", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get("user_id")})
    })
    return e
}

func TestJWTAuthAcceptsMintedToken(t *testing.T) {
    e := protectedEcho(JWTAuth(testSecret))
    tok, err := utils.NewAccessToken(testSecret, 42, "CUSTOMER", 5)
    require.NoError(t, err)

    req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
    req.Header.Set("Authorization", "Bearer "+tok.Token)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)

    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), "42")
}

func TestJWTAuthRejectsMissingAndBadTokens(t *testing.T) {
    e := protectedEcho(JWTAuth(testSecret))

    req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    wrong, err := utils.NewAccessToken("other-secret", 42, "CUSTOMER", 5)
    require.NoError(t, err)
    req = httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
    req.Header.Set("Authorization", "Bearer "+wrong.Token)
    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleFiltersByClaim(t *testing.T) {
    e := protectedEcho(JWTAuth(testSecret), RequireRole("CUSTOMER"))

    customer, err := utils.NewAccessToken(testSecret, 42, "CUSTOMER", 5)
    require.NoError(t, err)
    req := httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
    req.Header.Set("Authorization", "Bearer "+customer.Token)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusOK, rec.Code)

    owner, err := utils.NewAccessToken(testSecret, 7, "OWNER", 5)
    require.NoError(t, err)
    req = httptest.NewRequest(http.MethodGet, "/v1/ping", nil)
    req.Header.Set("Authorization", "Bearer "+owner.Token)
    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    assert.Equal(t, http.StatusForbidden, rec.Code)
}
