package flows

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/scope"
	"oauth2-token-server/internal/store/types"
	"oauth2-token-server/internal/utils"

	"github.com/ory/fosite"
	"github.com/sirupsen/logrus"
)

// Response types accepted at the authorization endpoint
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// AuthorizationRequest is the validated subset of an authorization endpoint request
type AuthorizationRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
}

// AuthorizationOutcome is either a redirect back to the client or a pending
// transaction that needs the resource owner's decision
type AuthorizationOutcome struct {
	RedirectURL string
	Pending     *models.PendingAuthorization
}

// Authorizer runs the authorization endpoint: it validates the request, auto
// approves trusted clients and otherwise parks the request in a transaction.
type Authorizer struct {
	store        types.Storage
	issuer       *GrantIssuer
	transactions *TransactionManager
	logger       *logrus.Logger
}

// NewAuthorizer creates an authorizer
func NewAuthorizer(store types.Storage, issuer *GrantIssuer, transactions *TransactionManager, logger *logrus.Logger) *Authorizer {
	return &Authorizer{
		store:        store,
		issuer:       issuer,
		transactions: transactions,
		logger:       logger,
	}
}

// Authorize handles an authorization request from an authenticated resource owner.
// A Denial is returned only while the redirect URI is not yet trusted; later
// failures are reported to the client through the redirect.
func (a *Authorizer) Authorize(ctx context.Context, req *AuthorizationRequest, user *models.User) (*AuthorizationOutcome, error) {
	client, redirectURI, err := a.resolveClient(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return nil, err
	}

	fragment := req.ResponseType == ResponseTypeToken

	if req.ResponseType != ResponseTypeCode && req.ResponseType != ResponseTypeToken {
		return a.redirectError(redirectURI, fosite.ErrUnsupportedResponseType, req.State, false)
	}
	if !client.AllowsResponseType(req.ResponseType) {
		return a.redirectError(redirectURI, fosite.ErrUnauthorizedClient, req.State, fragment)
	}

	requested := scope.Normalize(req.Scope)
	if requested == "" {
		requested = scope.Normalize(client.Scope)
	}
	if !scope.Allowed(client.Scope, requested) {
		return a.redirectError(redirectURI, fosite.ErrInvalidScope, req.State, fragment)
	}

	if client.Trusted {
		a.logger.Infof("✅ Trusted client %s auto-approved for user %s", client.ID, user.ID)
		redirectURL, err := a.issue(ctx, client, user, redirectURI, req.ResponseType, requested, req.State)
		if err != nil {
			return nil, err
		}
		return &AuthorizationOutcome{RedirectURL: redirectURL}, nil
	}

	transactionID, err := a.transactions.Begin(&AuthorizationTransaction{
		ClientID:     client.ID,
		RedirectURI:  redirectURI,
		UserID:       user.ID,
		Scope:        requested,
		ResponseType: req.ResponseType,
		State:        req.State,
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debugf("🔄 Authorization for client %s awaiting decision of user %s", client.ID, user.ID)
	return &AuthorizationOutcome{
		Pending: &models.PendingAuthorization{
			TransactionID: transactionID,
			Client:        client.Summary(),
			RedirectURI:   redirectURI,
			Scope:         requested,
		},
	}, nil
}

// Decide completes a pending transaction with the resource owner's decision and
// returns the redirect back to the client. The transaction is consumed only once
// the submitting user and the client have been checked.
func (a *Authorizer) Decide(ctx context.Context, transactionID string, user *models.User, allow bool) (string, error) {
	tx, err := a.transactions.Verify(transactionID)
	if err != nil {
		return "", deny(fosite.ErrInvalidRequest.WithDescription("The authorization transaction is invalid or expired."), err.Error())
	}

	if tx.UserID != user.ID {
		return "", deny(fosite.ErrAccessDenied, "decision submitted by a different user")
	}

	// Re-read the client so a removed or changed client cannot complete the flow
	client, redirectURI, err := a.resolveClient(ctx, tx.ClientID, tx.RedirectURI)
	if err != nil {
		return "", err
	}

	if err := a.transactions.Claim(tx); err != nil {
		return "", deny(fosite.ErrInvalidRequest.WithDescription("The authorization transaction is invalid or expired."), err.Error())
	}

	fragment := tx.ResponseType == ResponseTypeToken

	if !allow {
		a.logger.Infof("⚠️  User %s denied authorization for client %s", user.ID, client.ID)
		outcome, err := a.redirectError(redirectURI, fosite.ErrAccessDenied, tx.State, fragment)
		if err != nil {
			return "", err
		}
		return outcome.RedirectURL, nil
	}

	redirectURL, err := a.issue(ctx, client, user, redirectURI, tx.ResponseType, tx.Scope, tx.State)
	if err != nil {
		a.transactions.Release(tx)
		return "", err
	}
	return redirectURL, nil
}

// resolveClient loads the client and checks the redirect URI against the registered one.
// An empty redirect URI selects the registered URI.
func (a *Authorizer) resolveClient(ctx context.Context, clientID, redirectURI string) (*models.Client, string, error) {
	if clientID == "" {
		return nil, "", deny(fosite.ErrInvalidRequest, "client_id parameter missing")
	}

	client, err := a.store.GetClient(ctx, clientID)
	if errors.Is(err, types.ErrNotFound) {
		return nil, "", deny(fosite.ErrInvalidClient, "unknown client "+clientID)
	}
	if err != nil {
		return nil, "", storeError("get client", err)
	}

	if redirectURI == "" {
		redirectURI = client.RedirectURI
	}
	if redirectURI == "" || redirectURI != client.RedirectURI {
		return nil, "", deny(fosite.ErrInvalidRequest.WithDescription("The redirect_uri does not match the registered redirect URI."), "redirect_uri mismatch for client "+client.ID)
	}

	return client, redirectURI, nil
}

func (a *Authorizer) issue(ctx context.Context, client *models.Client, user *models.User, redirectURI, responseType, approvedScope, state string) (string, error) {
	params := url.Values{}

	switch responseType {
	case ResponseTypeCode:
		code, err := a.issuer.IssueCode(ctx, client, redirectURI, user, approvedScope)
		if err != nil {
			return "", err
		}
		params.Set("code", code)
	case ResponseTypeToken:
		token, expiresIn, err := a.issuer.IssueImplicitToken(ctx, client, user, approvedScope)
		if err != nil {
			return "", err
		}
		params.Set("access_token", token)
		params.Set("token_type", "bearer")
		if expiresIn > 0 {
			params.Set("expires_in", strconv.Itoa(expiresIn))
		}
		if approvedScope != "" {
			params.Set("scope", approvedScope)
		}
	default:
		return "", deny(fosite.ErrUnsupportedResponseType, "unsupported response type "+responseType)
	}

	if state != "" {
		params.Set("state", state)
	}
	return utils.BuildRedirectURL(redirectURI, params, responseType == ResponseTypeToken)
}

func (a *Authorizer) redirectError(redirectURI string, rfcErr *fosite.RFC6749Error, state string, fragment bool) (*AuthorizationOutcome, error) {
	params := url.Values{}
	params.Set("error", rfcErr.ErrorField)
	if rfcErr.DescriptionField != "" {
		params.Set("error_description", rfcErr.DescriptionField)
	}
	if state != "" {
		params.Set("state", state)
	}

	redirectURL, err := utils.BuildRedirectURL(redirectURI, params, fragment)
	if err != nil {
		return nil, err
	}
	return &AuthorizationOutcome{RedirectURL: redirectURL}, nil
}
