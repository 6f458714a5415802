package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"vendora/internal/secevent"
	"vendora/pkg/tenants"
)

const (
	claimRole   = "role"
	claimRealm  = "realm"
	claimTenant = "tid"
	claimFamily = "fam"
	claimType   = "typ"

	typeAccess  = "access"
	typeRefresh = "refresh"

	clockSkew = 30 * time.Second
)

// Principal is an authenticated, realm-scoped identity.
type Principal struct {
	SubjectID string
	Role      string
	Realm     tenants.Realm
}

// Pair is one issuance: a short-lived access token and the refresh token
// that can mint its successors.
type Pair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

type Service struct {
	secret     []byte
	store      RefreshStore
	events     *secevent.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func NewService(secret []byte, store RefreshStore, events *secevent.Logger, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     secret,
		store:      store,
		events:     events,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue mints a new pair rooted in a fresh token family. Called at login and
// registration; the caller emits the matching login/registration event.
func (s *Service) Issue(ctx context.Context, subjectID, role string, realm tenants.Realm) (Pair, error) {
	family := uuid.NewString()
	return s.mint(ctx, subjectID, role, realm, family)
}

// Verify checks an access token against the realm resolved for the current
// request. Any mismatch between the embedded realm/tenant and the expected
// one fails closed; there is no partial trust.
func (s *Service) Verify(ctx context.Context, raw string, expected tenants.Realm) (Principal, error) {
	tok, err := s.parse(raw)
	if err != nil {
		s.recordParseFailure(ctx, err, expected)
		return Principal{}, err
	}
	if typ, _ := stringClaim(tok, claimType); typ != typeAccess {
		s.events.Record(ctx, secevent.Event{Kind: secevent.KindInvalidToken, TenantID: expected.TenantID, Outcome: "wrong token type"})
		return Principal{}, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	p, err := s.principalOf(tok, expected)
	if err != nil {
		s.events.Record(ctx, secevent.Event{Kind: secevent.KindInvalidToken, SubjectID: tok.Subject(), TenantID: expected.TenantID, Outcome: "realm mismatch"})
		return Principal{}, err
	}
	return p, nil
}

// Rotate exchanges a refresh token for a new pair in the same family. A
// missing or already-consumed record is a replay signal: the family is
// revoked and no tokens are issued, even though the presented token was
// cryptographically valid.
func (s *Service) Rotate(ctx context.Context, raw string, expected tenants.Realm) (Pair, error) {
	tok, err := s.parse(raw)
	if err != nil {
		s.recordParseFailure(ctx, err, expected)
		return Pair{}, err
	}
	if typ, _ := stringClaim(tok, claimType); typ != typeRefresh {
		s.events.Record(ctx, secevent.Event{Kind: secevent.KindInvalidToken, TenantID: expected.TenantID, Outcome: "wrong token type"})
		return Pair{}, fmt.Errorf("%w: wrong token type", ErrInvalidToken)
	}
	p, err := s.principalOf(tok, expected)
	if err != nil {
		s.events.Record(ctx, secevent.Event{Kind: secevent.KindInvalidToken, SubjectID: tok.Subject(), TenantID: expected.TenantID, Outcome: "realm mismatch"})
		return Pair{}, err
	}
	family, _ := stringClaim(tok, claimFamily)
	if family == "" {
		s.events.Record(ctx, secevent.Event{Kind: secevent.KindInvalidToken, SubjectID: p.SubjectID, TenantID: expected.TenantID, Outcome: "missing family"})
		return Pair{}, fmt.Errorf("%w: missing family", ErrInvalidToken)
	}

	// Build the successor before touching storage so the consume-and-insert
	// step is one atomic operation.
	now := s.now()
	pair, successor, err := s.build(p.SubjectID, p.Role, p.Realm, family, now)
	if err != nil {
		return Pair{}, err
	}
	switch err := s.store.ConsumeAndReplace(ctx, tok.JwtID(), successor); {
	case err == nil:
		s.events.Record(ctx, secevent.Event{Kind: secevent.KindTokenRefreshed, SubjectID: p.SubjectID, TenantID: p.Realm.TenantID, Outcome: "rotated"})
		return pair, nil
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrRecordConsumed):
		if rerr := s.store.RevokeFamily(ctx, family); rerr != nil {
			s.events.Record(ctx, secevent.Event{Kind: secevent.KindSuspiciousActivity, SubjectID: p.SubjectID, TenantID: p.Realm.TenantID, Outcome: "family revocation failed"})
		}
		s.events.Record(ctx, secevent.Event{Kind: secevent.KindSuspiciousActivity, SubjectID: p.SubjectID, TenantID: p.Realm.TenantID, Outcome: "refresh token replayed, family revoked"})
		return Pair{}, ErrTokenReuse
	default:
		return Pair{}, fmt.Errorf("rotate: %w", err)
	}
}

// Revoke consumes the presented refresh token without a successor (logout).
// Best effort: an expired or malformed token has nothing left to revoke.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, s.secret), jwt.WithValidate(false))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tok.JwtID() == "" {
		return fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	return s.store.Consume(ctx, tok.JwtID())
}

func (s *Service) mint(ctx context.Context, subjectID, role string, realm tenants.Realm, family string) (Pair, error) {
	pair, rec, err := s.build(subjectID, role, realm, family, s.now())
	if err != nil {
		return Pair{}, err
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return Pair{}, fmt.Errorf("persist refresh record: %w", err)
	}
	return pair, nil
}

// build signs an access/refresh pair and returns the refresh record to
// persist. It does not touch storage.
func (s *Service) build(subjectID, role string, realm tenants.Realm, family string, now time.Time) (Pair, RefreshRecord, error) {
	access, err := s.sign(subjectID, role, realm, typeAccess, uuid.NewString(), "", now, s.accessTTL)
	if err != nil {
		return Pair{}, RefreshRecord{}, err
	}
	refreshID := uuid.NewString()
	refresh, err := s.sign(subjectID, role, realm, typeRefresh, refreshID, family, now, s.refreshTTL)
	if err != nil {
		return Pair{}, RefreshRecord{}, err
	}
	rec := RefreshRecord{
		ID:        refreshID,
		FamilyID:  family,
		SubjectID: subjectID,
		Role:      role,
		Realm:     realm,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	return Pair{AccessToken: access, RefreshToken: refresh, AccessTTL: s.accessTTL, RefreshTTL: s.refreshTTL}, rec, nil
}

func (s *Service) sign(subjectID, role string, realm tenants.Realm, typ, jti, family string, now time.Time, ttl time.Duration) (string, error) {
	b := jwt.NewBuilder().
		Subject(subjectID).
		JwtID(jti).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(claimType, typ).
		Claim(claimRole, role).
		Claim(claimRealm, string(realm.Kind))
	if realm.Kind == tenants.KindShop {
		b = b.Claim(claimTenant, realm.TenantID)
	}
	if family != "" {
		b = b.Claim(claimFamily, family)
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

func (s *Service) parse(raw string) (jwt.Token, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(clockSkew),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, errExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return tok, nil
}

// errExpired distinguishes expiry from other parse failures for event
// classification; callers only ever see ErrInvalidToken.
var errExpired = errors.New("token expired")

// principalOf extracts the identity and checks the embedded scope against
// the expected realm.
func (s *Service) principalOf(tok jwt.Token, expected tenants.Realm) (Principal, error) {
	kind, _ := stringClaim(tok, claimRealm)
	tid, _ := stringClaim(tok, claimTenant)
	role, _ := stringClaim(tok, claimRole)
	embedded := tenants.Realm{Kind: tenants.Kind(kind), TenantID: tid}
	if !embedded.Matches(expected) {
		return Principal{}, fmt.Errorf("%w: realm mismatch", ErrInvalidToken)
	}
	return Principal{SubjectID: tok.Subject(), Role: role, Realm: embedded}, nil
}

func (s *Service) recordParseFailure(ctx context.Context, err error, expected tenants.Realm) {
	kind := secevent.KindInvalidToken
	outcome := "signature or claims rejected"
	if errors.Is(err, errExpired) {
		kind = secevent.KindTokenExpired
		outcome = "token expired"
	}
	s.events.Record(ctx, secevent.Event{Kind: kind, TenantID: expected.TenantID, Outcome: outcome})
}

func stringClaim(tok jwt.Token, name string) (string, bool) {
	v, ok := tok.Get(name)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}
