package merchant

import "encoding/json"

type AccessToken struct {
	Token     string `json:"access_token"`
	ExpiresIn int64  `json:"expires_in"`
	Scope     string `json:"scope"`
	TokenType string `json:"token_type"`
}

// AccessTokenResponse is the access-token envelope. Backends differ on the
// envelope key, so both "access_token" and "accessToken" are accepted.
type AccessTokenResponse struct {
	AccessToken *AccessToken `json:"access_token"`
}

func (r *AccessTokenResponse) UnmarshalJSON(b []byte) error {
	var env struct {
		Snake *AccessToken `json:"access_token"`
		Camel *AccessToken `json:"accessToken"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	r.AccessToken = env.Snake
	if r.AccessToken == nil {
		r.AccessToken = env.Camel
	}
	return nil
}

type SessionKey struct {
	Key string `json:"sessionKey"`
}

type SessionKeyResponse struct {
	SessionKey *SessionKey `json:"sessionKey"`
}

type Payment struct {
	ID                string `json:"paymentId"`
	Status            string `json:"paymentStatus"`
	ClientReferenceID string `json:"clientReferenceId"`
}

type PaymentResponse struct {
	Parsed *Payment `json:"parsed"`
}
