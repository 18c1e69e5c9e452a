// Package core holds the HTTP plumbing shared by the modules: typed handlers
// with JSON binding and validation, the response envelope and error mapping.
//
// Every JSON response is either {"data": ...} or
// {"error": {"code": "...", "message": "...", "details": {...}}}.
//
//	type createRequest struct {
//		Name string `json:"name" validate:"required,max=200"`
//	}
//
//	h := core.Wrap(func(r *http.Request, req createRequest) core.Response {
//		p, err := svc.Create(r.Context(), req.Name)
//		if err != nil {
//			return core.Error(err)
//		}
//		return core.JSON(http.StatusCreated, p)
//	}, core.WithBinders(core.BindJSON(validate)), core.WithErrorHandler(errs))
//
// Domain packages contribute ErrorMapper funcs so that their sentinel errors
// surface with the right status and code.
package core
