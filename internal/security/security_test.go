package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "SELECT 1 FROM DUAL", "SELECT 1 FROM DUAL"},
		{"trailing semicolon", "SELECT 1 FROM DUAL;", "SELECT 1 FROM DUAL"},
		{"semicolons and whitespace", "  SELECT 1 ;; \n\t", "SELECT 1"},
		{"trailing line comment", "SELECT a FROM t -- the end", "SELECT a FROM t"},
		{"comment after semicolon", "SELECT a FROM t; -- done\n", "SELECT a FROM t"},
		{"trailing block comment", "SELECT a FROM t /* note */;", "SELECT a FROM t"},
		{"inner comment kept", "SELECT a -- col\nFROM t", "SELECT a -- col\nFROM t"},
		{"dashes inside literal", "SELECT '--x;' AS s FROM t", "SELECT '--x;' AS s FROM t"},
		{"only a comment", "-- nothing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanQuery(tt.in))
		})
	}
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		query   string
		wantErr error
	}{
		{"SELECT * FROM orders", nil},
		{"select id from t where deleted_at is null", nil},
		{"WITH x AS (SELECT 1 AS n) SELECT n FROM x", nil},
		{"SELECT 1 UNION ALL SELECT 2", nil},
		{"SELECT 'DROP TABLE t' AS s FROM dual", nil},
		{"SELECT REPLACE(name, 'a', 'b') FROM t", nil},
		{"(SELECT 1) UNION (SELECT 2)", nil},
		{"", ErrEmptyQuery},
		{"DELETE FROM orders", ErrNotSelect},
		{"SELECTED FROM t", ErrNotSelect},
		{"SELECT 1; DROP TABLE t", ErrMultipleQueries},
		{"SELECT * INTO backup FROM orders", ErrForbiddenKeyword},
		{"WITH d AS (DELETE FROM t RETURNING *) SELECT * FROM d", ErrForbiddenKeyword},
		{"SELECT * FROM t FOR UPDATE", ErrForbiddenKeyword},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJobToken(t *testing.T) {
	const secret = "agent-secret"

	token, err := SignJob(secret, JobClaims{QueryPath: "sales/daily.sql", Query: "SELECT 1", BatchSize: 500}, time.Minute)
	require.NoError(t, err)

	claims, err := VerifyJob(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "sales/daily.sql", claims.QueryPath)
	assert.Equal(t, "SELECT 1", claims.Query)
	assert.Equal(t, 500, claims.BatchSize)

	_, err = VerifyJob("other-secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VerifyJob(secret, token+"x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = VerifyJob("", token)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestJobToken_Expired(t *testing.T) {
	token, err := SignJob("s", JobClaims{Query: "SELECT 1"}, -time.Hour)
	require.NoError(t, err)

	_, err = VerifyJob("s", token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJobToken_RequiresQuery(t *testing.T) {
	token, err := SignJob("s", JobClaims{}, time.Minute)
	require.NoError(t, err)

	_, err = VerifyJob("s", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
