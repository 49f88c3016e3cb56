package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jwulff/linkup-go/internal/bloodsugar"
	"github.com/jwulff/linkup-go/internal/config"
	"github.com/jwulff/linkup-go/internal/librelink"
	"github.com/jwulff/linkup-go/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records calls and returns canned results.
type fakeClient struct {
	loginErr   error
	loginCred  librelink.Credential
	conns      []librelink.Connection
	connErr    error
	measure    bloodsugar.Measurement
	fetchErr   error
	logins     int
	resolves   int
	fetches    int
	usedToken  string
	fetchedFor string
}

func (f *fakeClient) Login(ctx context.Context, region librelink.Region, username, password string) (librelink.Credential, error) {
	f.logins++
	if f.loginErr != nil {
		return librelink.Credential{}, f.loginErr
	}
	return f.loginCred, nil
}

func (f *fakeClient) ResolveConnection(ctx context.Context, region librelink.Region, cred librelink.Credential, preferredID string) (librelink.Connection, error) {
	f.resolves++
	f.usedToken = cred.Token
	if f.connErr != nil {
		return librelink.Connection{}, f.connErr
	}
	conn, _, err := librelink.SelectConnection(f.conns, preferredID)
	return conn, err
}

func (f *fakeClient) FetchLatest(ctx context.Context, region librelink.Region, cred librelink.Credential, patientID string) (bloodsugar.Measurement, error) {
	f.fetches++
	f.fetchedFor = patientID
	if f.fetchErr != nil {
		return bloodsugar.Measurement{}, f.fetchErr
	}
	return f.measure, nil
}

type recorder struct {
	notices []notify.Notice
}

func (r *recorder) Notify(n notify.Notice) { r.notices = append(r.notices, n) }

func testConfig() config.Config {
	c := config.DefaultConfig()
	c.Region = "EU"
	c.Username = "me@example.com"
	c.Password = "secret"
	return *c
}

func freshCredential(token string) librelink.Credential {
	return librelink.Credential{Token: token, Expires: time.Now().Add(time.Hour).Unix(), Duration: 3600000}
}

func twoConnections() []librelink.Connection {
	return []librelink.Connection{{PatientID: "P1"}, {PatientID: "P2"}}
}

func TestStateIsValid(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewState()
	s.now = func() time.Time { return now }

	assert.False(t, s.IsValid(), "empty state is invalid")

	s.Set(librelink.Credential{Token: "t", Expires: now.Unix() - 1})
	assert.False(t, s.IsValid())

	s.Set(librelink.Credential{Token: "t", Expires: now.Unix()})
	assert.False(t, s.IsValid(), "expiry equal to now counts as expired")

	s.Set(librelink.Credential{Token: "t", Expires: now.Unix() + 1})
	assert.True(t, s.IsValid())
	token, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "t", token)

	s.Clear()
	assert.False(t, s.IsValid())
	_, ok = s.Token()
	assert.False(t, ok)
}

func TestFetchLatestReadingLoginRejected(t *testing.T) {
	client := &fakeClient{loginErr: fmt.Errorf("%w: non-zero status 2", librelink.ErrRejected)}
	rec := &recorder{}
	s := New(client, WithNotifier(rec))

	result := s.FetchLatestReading(context.Background(), testConfig())

	assert.True(t, result.Absent())
	assert.Equal(t, StageAuth, result.Stage)
	assert.Equal(t, "rejected", result.Reason())
	assert.False(t, s.State().IsValid())
	assert.Equal(t, 0, client.resolves, "no connection call after a failed login")
	assert.Equal(t, 0, client.fetches)
	require.Len(t, rec.notices, 1)
	assert.Equal(t, notify.LevelError, rec.notices[0].Level)
}

func TestFetchLatestReadingWrongRegion(t *testing.T) {
	client := &fakeClient{loginErr: &librelink.WrongRegionError{Region: "US"}}
	rec := &recorder{}
	s := New(client, WithNotifier(rec))

	result := s.FetchLatestReading(context.Background(), testConfig())

	assert.True(t, result.Absent())
	assert.ErrorIs(t, result.Err, librelink.ErrWrongRegion)
	require.Len(t, rec.notices, 1)
	assert.Contains(t, rec.notices[0].Message, "'US'")
	assert.Equal(t, 1, client.logins)
}

func TestFetchLatestReadingUnknownRegion(t *testing.T) {
	_, err := librelink.ResolveHost("XX")
	client := &fakeClient{loginErr: err}
	rec := &recorder{}
	s := New(client, WithNotifier(rec))

	result := s.FetchLatestReading(context.Background(), testConfig())

	assert.Equal(t, StageConfig, result.Stage)
	assert.Len(t, rec.notices, 1)
}

func TestFetchLatestReadingNetworkLoginNotNotified(t *testing.T) {
	client := &fakeClient{loginErr: fmt.Errorf("%w: dial tcp", librelink.ErrNetwork)}
	rec := &recorder{}
	s := New(client, WithNotifier(rec))

	result := s.FetchLatestReading(context.Background(), testConfig())

	assert.True(t, result.Absent())
	assert.Equal(t, "network", result.Reason())
	assert.Empty(t, rec.notices, "transient failures are only logged")
}

func TestFetchLatestReadingSuccess(t *testing.T) {
	client := &fakeClient{
		loginCred: freshCredential("tok"),
		conns:     twoConnections(),
		measure:   bloodsugar.Measurement{ValueInMgPerDl: 95, TrendArrow: bloodsugar.TrendFlat},
	}
	s := New(client)
	cfg := testConfig()
	cfg.Connection = "P2"

	result := s.FetchLatestReading(context.Background(), cfg)

	require.False(t, result.Absent())
	assert.NoError(t, result.Err)
	assert.True(t, result.Renewed)
	assert.Equal(t, "P2", result.Connection.PatientID)
	assert.Equal(t, "P2", client.fetchedFor)
	assert.Equal(t, 95.0, result.Measurement.ValueInMgPerDl)
	assert.Equal(t, "tok", client.usedToken)
	assert.True(t, s.State().IsValid())
}

func TestFetchLatestReadingReusesValidCredential(t *testing.T) {
	client := &fakeClient{
		loginCred: freshCredential("tok"),
		conns:     twoConnections(),
		measure:   bloodsugar.Measurement{ValueInMgPerDl: 100},
	}
	s := New(client)

	first := s.FetchLatestReading(context.Background(), testConfig())
	second := s.FetchLatestReading(context.Background(), testConfig())

	assert.True(t, first.Renewed)
	assert.False(t, second.Renewed)
	assert.Equal(t, 1, client.logins)
	assert.Equal(t, 2, client.fetches)
}

func TestFetchLatestReadingRenewsExpiredCredential(t *testing.T) {
	client := &fakeClient{
		loginCred: freshCredential("new"),
		conns:     twoConnections(),
		measure:   bloodsugar.Measurement{ValueInMgPerDl: 100},
	}
	state := NewState()
	state.Set(librelink.Credential{Token: "old", Expires: time.Now().Add(-time.Minute).Unix()})
	s := New(client, WithState(state))

	result := s.FetchLatestReading(context.Background(), testConfig())

	assert.False(t, result.Absent())
	assert.Equal(t, 1, client.logins)
	assert.Equal(t, "new", client.usedToken)
}

func TestFetchLatestReadingConnectionErrorInvalidates(t *testing.T) {
	client := &fakeClient{
		loginCred: freshCredential("tok"),
		connErr:   fmt.Errorf("%w: connection reset", librelink.ErrNetwork),
	}
	state := NewState()
	state.Set(freshCredential("tok"))
	s := New(client, WithState(state))

	result := s.FetchLatestReading(context.Background(), testConfig())

	assert.True(t, result.Absent())
	assert.Equal(t, StageConnection, result.Stage)
	assert.False(t, s.State().IsValid(), "next tick must log in again")
	assert.Equal(t, 0, client.logins)
	assert.Equal(t, 0, client.fetches)

	client.connErr = nil
	client.conns = twoConnections()
	s.FetchLatestReading(context.Background(), testConfig())
	assert.Equal(t, 1, client.logins)
}

func TestFetchLatestReadingSelectionFailures(t *testing.T) {
	tests := []struct {
		name   string
		conns  []librelink.Connection
		prefer string
		err    error
	}{
		{"none found", nil, "", librelink.ErrNoConnections},
		{"preferred missing", twoConnections(), "P9", librelink.ErrPreferredNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{loginCred: freshCredential("tok"), conns: tt.conns}
			s := New(client)
			cfg := testConfig()
			cfg.Connection = tt.prefer

			result := s.FetchLatestReading(context.Background(), cfg)

			assert.True(t, result.Absent())
			assert.ErrorIs(t, result.Err, tt.err)
			assert.Equal(t, StageConnection, result.Stage)
			assert.False(t, s.State().IsValid())
			assert.Equal(t, 0, client.fetches)
		})
	}
}

func TestFetchLatestReadingFetchErrorInvalidates(t *testing.T) {
	client := &fakeClient{
		loginCred: freshCredential("tok"),
		conns:     twoConnections(),
		fetchErr:  fmt.Errorf("%w: missing field", librelink.ErrNetwork),
	}
	s := New(client)

	result := s.FetchLatestReading(context.Background(), testConfig())

	assert.True(t, result.Absent())
	assert.Equal(t, StageFetch, result.Stage)
	assert.Equal(t, "P1", result.Connection.PatientID)
	assert.False(t, s.State().IsValid())
}
