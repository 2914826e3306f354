// Package errors provides structured errors for the director.
//
// Every failure a caller can react to carries a Code. The dispatcher maps its
// outcomes onto codes (transport failures are Unavailable, undecodable
// payloads are DataLoss, invalidated requests are Canceled) and the analysis
// server maps codes back to HTTP statuses and gRPC codes.
//
// # Basic Usage
//
// Creating errors:
//
//	err := errors.NotFound("history not found")
//	err := errors.InvalidArgumentf("unknown tag category: %s", root)
//
// Adding metadata:
//
//	err := errors.NotFound("tag not registered").
//	    WithMeta("tag", key)
//
// Wrapping errors:
//
//	if err := repo.Append(ctx, input); err != nil {
//	    return errors.Wrap(err, "failed to record analysis")
//	}
//
// Changing error semantics:
//
//	if err := json.Unmarshal(body, &resp); err != nil {
//	    return errors.WrapWithCode(err, errors.CodeDataLoss, "malformed response envelope")
//	}
//
// # Validation Errors
//
//	vb := errors.NewValidationBuilder()
//	errors.ValidateHTTPURL("URL", cfg.URL, vb)
//	errors.ValidateFinite("health", state.Health, vb)
//	if err := vb.Build(); err != nil {
//	    return err
//	}
//
// # Transport Mapping
//
//   - Code.HTTPStatus maps a code to the status the HTTP API replies with.
//   - FromHTTPStatus maps a status received from a remote service to a code.
//   - ToGRPCError converts an error for the gRPC surface.
package errors
