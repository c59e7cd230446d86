/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pool

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	uuid "github.com/kthomas/go.uuid"
	"github.com/provideplatform/datapool/common"
	"github.com/provideplatform/datapool/fault"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"
)

// pools resolved by the API handlers
var pools Directory

// authorizedSubject resolves the identity of the caller from the bearer token
var authorizedSubject = func(c *gin.Context) *string {
	userID := util.AuthorizedSubjectID(c, "user")
	if userID == nil {
		return nil
	}
	return common.StringOrNil(userID.String())
}

// InstallAPI registers the pool API handlers with gin
func InstallAPI(r *gin.Engine, directory Directory) {
	pools = directory

	r.POST("/api/v1/pools", createPoolHandler)
	r.GET("/api/v1/pools/:id", poolDetailsHandler)
	r.POST("/api/v1/pools/:id/close", closePoolHandler)

	r.POST("/api/v1/pools/:id/join", joinPoolHandler)
	r.POST("/api/v1/pools/:id/proofs", submitProofHandler)
	r.GET("/api/v1/pools/:id/sellers/:seller", sellerDetailsHandler)
	r.POST("/api/v1/pools/:id/sellers/:seller/verify", verifySellerHandler)

	r.POST("/api/v1/pools/:id/data", registerDataHandler)
	r.GET("/api/v1/pools/:id/data/:seller", dataDetailsHandler)

	r.POST("/api/v1/pools/:id/access", transferAccessHandler)
	r.GET("/api/v1/pools/:id/access/:buyer", accessListHandler)

	r.POST("/api/v1/pools/:id/settle", settleAllHandler)
}

// renderPoolError renders the error with the status of its class
func renderPoolError(err error, c *gin.Context) {
	status := 500
	if fault.IsErrInvalid(err) {
		status = 422
	} else if fault.IsErrExists(err) {
		status = 409
	} else if fault.IsErrNotFound(err) {
		status = 404
	} else if fault.IsErrProcess(err) {
		status = 502
	}
	provide.RenderError(err.Error(), status, c)
}

// resolvePool authorizes the caller and resolves the pool identified by the request path
func resolvePool(c *gin.Context) (*Pool, *string) {
	caller := authorizedSubject(c)
	if caller == nil {
		provide.RenderError("unauthorized", 401, c)
		return nil, nil
	}

	poolID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return nil, nil
	}

	p, err := pools.Find(poolID)
	if err != nil {
		renderPoolError(err, c)
		return nil, nil
	}

	return p, caller
}

// bindParams reads the raw request body into the given params
func bindParams(c *gin.Context, params interface{}) bool {
	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return false
	}

	err = json.Unmarshal(buf, params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return false
	}

	return true
}

func createPoolHandler(c *gin.Context) {
	caller := authorizedSubject(c)
	if caller == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	cfg := &Config{}
	if !bindParams(c, cfg) {
		return
	}
	cfg.Creator = *caller

	p, err := pools.Create(cfg)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(p.Details(), 201, c)
}

func poolDetailsHandler(c *gin.Context) {
	p, _ := resolvePool(c)
	if p == nil {
		return
	}

	provide.Render(p.Details(), 200, c)
}

func closePoolHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	err := p.Close(c.Request.Context(), *caller)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(p.Details(), 200, c)
}

func joinPoolHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	if p.Expired(time.Now()) {
		renderPoolError(fault.ErrPoolExpired, c)
		return
	}

	err := p.Join(c.Request.Context(), *caller)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	seller, _ := p.Seller(*caller)
	provide.Render(seller, 201, c)
}

func submitProofHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	params := struct {
		ProofName  string `json:"proof_name"`
		ProofValue string `json:"proof_value"`
	}{}
	if !bindParams(c, &params) {
		return
	}

	if params.ProofName == "" {
		provide.RenderError("proof_name required", 422, c)
		return
	}

	if p.Expired(time.Now()) {
		renderPoolError(fault.ErrPoolExpired, c)
		return
	}

	receipt, err := p.SubmitProof(c.Request.Context(), *caller, params.ProofName, params.ProofValue)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(receipt, 201, c)
}

func sellerDetailsHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	seller := c.Param("seller")
	if *caller != seller && *caller != p.Creator {
		provide.RenderError("forbidden", 403, c)
		return
	}

	s, err := p.Seller(seller)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(s, 200, c)
}

func verifySellerHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	receipt, err := p.Verify(c.Request.Context(), *caller, c.Param("seller"))
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(receipt, 200, c)
}

func registerDataHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	params := struct {
		ContentID       string `json:"content_id"`
		AccessCondition string `json:"access_condition"`
	}{}
	if !bindParams(c, &params) {
		return
	}

	receipt, err := p.RegisterData(c.Request.Context(), *caller, params.ContentID, params.AccessCondition)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(receipt, 201, c)
}

func dataDetailsHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	seller := c.Param("seller")
	if *caller != seller && *caller != p.Creator {
		provide.RenderError("forbidden", 403, c)
		return
	}

	data, err := p.Data(seller)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(data, 200, c)
}

func transferAccessHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	granted, err := p.TransferAccess(c.Request.Context(), *caller)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(map[string]interface{}{
		"granted":     granted,
		"content_ids": p.AccessibleContent(*caller),
	}, 200, c)
}

func accessListHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	buyer := c.Param("buyer")
	if *caller != buyer {
		provide.RenderError("forbidden", 403, c)
		return
	}

	provide.Render(map[string]interface{}{
		"content_ids": p.AccessibleContent(buyer),
	}, 200, c)
}

func settleAllHandler(c *gin.Context) {
	p, caller := resolvePool(c)
	if p == nil {
		return
	}

	result, err := p.SettleAll(c.Request.Context(), *caller)
	if err != nil {
		renderPoolError(err, c)
		return
	}

	provide.Render(result, 200, c)
}
