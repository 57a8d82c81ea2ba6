package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/oitbase/roomledger/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	subjectClaim = "sub"
	nameClaim    = "name"
	emailClaim   = "email"
	expClaim     = "exp"

	defaultTokenTTL = 24 * time.Hour

	identitiesPrefix = "devIdentities"
	emailIndexPrefix = "devIdentityEmails"
)

type devIdentity struct {
	Id           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DevProvider is a self-contained identity provider for development and
// single-node deployments: bcrypt-hashed credentials persisted in the
// store under its own namespace, HS256 session tokens.
type DevProvider struct {
	store      store.Store
	signingKey []byte
	tokenTTL   time.Duration
}

func NewDevProvider(s store.Store, signingKey []byte) *DevProvider {
	return &DevProvider{
		store:      s,
		signingKey: signingKey,
		tokenTTL:   defaultTokenTTL,
	}
}

func identityPath(subjectId string) string {
	return identitiesPrefix + "/" + subjectId
}

func emailIndexPath(email string) string {
	return emailIndexPrefix + "/" + store.EncodeKey(strings.ToLower(email))
}

func (p *DevProvider) Register(ctx context.Context, name, email, password string) (Subject, string, error) {
	if _, err := p.store.Get(ctx, emailIndexPath(email)); err == nil {
		return Subject{}, "", fmt.Errorf("%w: email already registered", ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Subject{}, "", fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	ident := devIdentity{
		Id:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	err = p.store.Update(ctx, map[string]any{
		identityPath(id):      ident,
		emailIndexPath(email): id,
	})
	if err != nil {
		return Subject{}, "", fmt.Errorf("%w: %v", ErrIdentityFailure, err)
	}

	return p.issue(ident)
}

func (p *DevProvider) Login(ctx context.Context, email, password string) (Subject, string, error) {
	raw, err := p.store.Get(ctx, emailIndexPath(email))
	if err != nil {
		return Subject{}, "", ErrInvalidCredentials
	}

	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return Subject{}, "", fmt.Errorf("%w: %v", ErrIdentityFailure, err)
	}

	raw, err = p.store.Get(ctx, identityPath(id))
	if err != nil {
		return Subject{}, "", ErrInvalidCredentials
	}

	var ident devIdentity
	if err := json.Unmarshal(raw, &ident); err != nil {
		return Subject{}, "", fmt.Errorf("%w: %v", ErrIdentityFailure, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(password)) != nil {
		return Subject{}, "", ErrInvalidCredentials
	}

	return p.issue(ident)
}

func (p *DevProvider) Verify(_ context.Context, tokenString string) (Subject, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return p.signingKey, nil
	})
	if err != nil {
		return Subject{}, fmt.Errorf("%w: parse token: %v", ErrInvalidCredentials, err)
	}

	if !token.Valid {
		return Subject{}, fmt.Errorf("%w: invalid token", ErrInvalidCredentials)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Subject{}, fmt.Errorf("%w: invalid token claims", ErrInvalidCredentials)
	}

	sub, ok := claims[subjectClaim].(string)
	if !ok || sub == "" {
		return Subject{}, fmt.Errorf("%w: missing subject claim", ErrInvalidCredentials)
	}

	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)

	return Subject{Id: sub, Name: name, Email: email}, nil
}

func (p *DevProvider) DeleteIdentity(ctx context.Context, subjectId string) error {
	raw, err := p.store.Get(ctx, identityPath(subjectId))
	if err != nil {
		if errors.Is(err, store.ErrPathNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrIdentityFailure, err)
	}

	var ident devIdentity
	if err := json.Unmarshal(raw, &ident); err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityFailure, err)
	}

	err = p.store.Update(ctx, map[string]any{
		identityPath(subjectId):     nil,
		emailIndexPath(ident.Email): nil,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIdentityFailure, err)
	}
	return nil
}

func (p *DevProvider) issue(ident devIdentity) (Subject, string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		subjectClaim: ident.Id,
		nameClaim:    ident.Name,
		emailClaim:   ident.Email,
		expClaim:     time.Now().Add(p.tokenTTL).Unix(),
	})

	signed, err := token.SignedString(p.signingKey)
	if err != nil {
		return Subject{}, "", fmt.Errorf("sign token: %w", err)
	}

	return Subject{Id: ident.Id, Name: ident.Name, Email: ident.Email}, signed, nil
}
