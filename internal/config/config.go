package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations.
type Config struct {
    Env       string // application environment (e.g. "dev", "prod")
    Port      string // HTTP port to listen on
    DBUser    string // database username
    DBPass    string // database password (optional)
    DBHost    string // database host address
    DBPort    string // database port number
    DBName    string // database name
    JWTSecret string // secret used to verify JWTs

    GatewayPayURL    string // payment page URL customers are redirected to
    GatewayReturnURL string // our return endpoint registered with the gateway
    GatewayTmnCode   string // merchant terminal code issued by the gateway
    GatewaySecret    string // HMAC secret shared with the gateway

    VerifyEndpoint   string // base URL of the payment verification service
    VerifyToken      string // bearer token for the verification service (optional)
    VerifyTimeoutSec int    // verification call timeout in seconds

    TxnTTLHours          int // lifetime of transaction documents in Redis
    ReconcileIntervalSec int // how often the reconciliation worker sweeps
    ReconcileAfterSec    int // how long an order may stay PENDING before reconciliation
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:       must("APP_ENV"),      // environment (dev/test/prod)
        Port:      must("APP_PORT"),     // port to bind the HTTP server
        DBUser:    must("DB_USER"),      // database user
        DBPass:    os.Getenv("DB_PASS"), // database password (empty allowed)
        DBHost:    must("DB_HOST"),      // database host
        DBPort:    must("DB_PORT"),      // database port
        DBName:    must("DB_NAME"),      // database name
        JWTSecret: must("JWT_SECRET"),   // secret used for verifying JWTs

        GatewayPayURL:    must("GATEWAY_PAY_URL"),    // gateway payment page
        GatewayReturnURL: must("GATEWAY_RETURN_URL"), // where the gateway sends customers back
        GatewayTmnCode:   must("GATEWAY_TMN_CODE"),   // merchant code
        GatewaySecret:    must("GATEWAY_SECRET"),     // signing secret

        VerifyEndpoint:   must("VERIFY_ENDPOINT"),         // verification service base URL
        VerifyToken:      os.Getenv("VERIFY_TOKEN"),       // optional bearer token
        VerifyTimeoutSec: intOr("VERIFY_TIMEOUT_SEC", 10), // verification timeout

        TxnTTLHours:          intOr("TXN_TTL_HOURS", 24),          // transaction document TTL
        ReconcileIntervalSec: intOr("RECONCILE_INTERVAL_SEC", 60), // sweep cadence
        ReconcileAfterSec:    intOr("RECONCILE_AFTER_SEC", 900),   // stuck-order cutoff
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// intOr retrieves an optional integer environment variable, falling back to
// the given default.  A set-but-invalid value is fatal rather than being
// silently ignored.
func intOr(key string, def int) int {
    s, ok := os.LookupEnv(key)
    if !ok || s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
