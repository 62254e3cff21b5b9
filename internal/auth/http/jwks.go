package http

import (
	"net/http"

	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/authsdk"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/httpx"
	"github.com/silaprtnw01/webtoon-be-normal-design/pkg/jwtx"
)

// JWKSHandler exposes the access token verification key.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify access tokens. The set is empty when tokens are signed with HS256.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeyManager) http.HandlerFunc {
	jwks := authsdk.JWKSResponse(keys.PublicJWKS())
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, jwks)
	}
}
