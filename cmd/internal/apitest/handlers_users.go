package apitest

import (
	"encoding/json"
	"net/http"

	apiv1 "glowguard/shared/contracts/api/v1"
)

var forbiddenUpdateFields = []string{"_id", "email", "hashed_password"}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	rec := u.rec
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, rec)
}

func (b *Backend) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	u, ok := b.requireUser(w, r)
	if !ok {
		return
	}

	var fields apiv1.ProfileUpdate
	if err := decodeJSON(w, r, b.maxBody, &fields); err != nil {
		writeValidation(w, validationItem{Loc: []string{"body"}, Msg: "invalid request body", Type: "value_error.jsondecode"})
		return
	}
	for _, k := range forbiddenUpdateFields {
		delete(fields, k)
	}
	if len(fields) == 0 {
		writeDetail(w, http.StatusBadRequest, "No valid fields to update")
		return
	}

	raw, _ := json.Marshal(fields)
	var patch profilePatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		writeValidation(w, validationItem{Loc: []string{"body"}, Msg: err.Error(), Type: "type_error"})
		return
	}

	b.mu.Lock()
	err := b.applyPatchLocked(u, patch)
	rec := u.rec
	b.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, detailFor(err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
