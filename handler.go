package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bhoriuchi/cf-graphql-server/utils"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
)

// ContextHandler provides an entrypoint into executing graphQL queries with a
// user-provided context.
//
// Status codes: 405 for methods other than GET and POST or mutations over
// GET, 400 when the request cannot be parsed or validated, 500 when
// execution produced no data and 200 otherwise.
func (s *Server) ContextHandler(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		s.writeErrors(w, http.StatusMethodNotAllowed, errors.New("GraphQL only supports GET and POST requests."))
		return
	}

	opts, err := NewRequestOptions(r)
	if err != nil {
		s.writeErrors(w, http.StatusBadRequest, err)
		return
	}

	if opts.Query == "" {
		s.writeErrors(w, http.StatusBadRequest, errors.New("Must provide query string."))
		return
	}

	document, err := utils.ParseQuery(opts.Query)
	if err != nil {
		s.writeErrors(w, http.StatusBadRequest, err)
		return
	}

	if validation := graphql.ValidateDocument(&s.schema, document, nil); !validation.IsValid {
		s.writeErrors(w, http.StatusBadRequest, validation.Errors)
		return
	}

	// an ambiguous or unknown operation is reported by the executor
	operation, _ := utils.GetOperationAST(document, opts.OperationName)
	if r.Method == http.MethodGet && operation != nil && operation.Operation != ast.OperationTypeQuery {
		w.Header().Set("Allow", "POST")
		s.writeErrors(w, http.StatusMethodNotAllowed, fmt.Errorf("Can only perform a %s operation from a POST request.", operation.Operation))
		return
	}

	params := graphql.Params{
		Schema:         s.schema,
		RequestString:  opts.Query,
		VariableValues: opts.Variables,
		OperationName:  opts.OperationName,
		Context:        ctx,
	}

	if s.options.RootValueFunc != nil {
		params.RootObject = s.options.RootValueFunc(ctx, r)
	}

	if params.RootObject == nil {
		params.RootObject = map[string]interface{}{}
	}

	result := graphql.Execute(graphql.ExecuteParams{
		Schema:        params.Schema,
		Root:          params.RootObject,
		AST:           document,
		OperationName: params.OperationName,
		Args:          params.VariableValues,
		Context:       ctx,
	})

	s.finalize(ctx, &params, result)

	status := http.StatusOK
	if result.Data == nil {
		status = http.StatusInternalServerError
	}

	buff := s.writeJSON(w, status, result)

	s.log.
		WithField("operationName", opts.OperationName).
		WithField("status", status).
		Debugf("executed graphql request with %d errors", len(result.Errors))

	if s.options.ResultCallbackFunc != nil {
		s.options.ResultCallbackFunc(ctx, &params, result, buff)
	}
}

// finalize formats the errors and adds the extensions of a result
func (s *Server) finalize(ctx context.Context, params *graphql.Params, result *graphql.Result) {
	if len(result.Errors) > 0 {
		result.Errors = s.formatErrors(result.Errors)
	}

	extensions := map[string]interface{}{}
	for k, v := range result.Extensions {
		extensions[k] = v
	}

	if s.options.Version != "" {
		extensions[VersionExtension] = map[string]interface{}{
			"version": s.options.Version,
		}
	}

	if s.options.ExtensionsFunc != nil {
		for k, v := range s.options.ExtensionsFunc(ctx, params, result) {
			extensions[k] = v
		}
	}

	if len(extensions) > 0 {
		result.Extensions = extensions
	}
}

func (s *Server) formatErrors(errs []gqlerrors.FormattedError) []gqlerrors.FormattedError {
	formatted := make([]gqlerrors.FormattedError, len(errs))

	for i, fe := range errs {
		original := unwrapGQLError(fe.OriginalError())

		if s.options.FormatErrorFunc != nil {
			if original != nil {
				fe = s.options.FormatErrorFunc(original)
			} else {
				fe = s.options.FormatErrorFunc(fe)
			}
		}

		if s.options.DetailedErrors {
			detail := map[string]interface{}{
				"message": fe.Message,
				"type":    "GraphQLError",
			}
			if original != nil {
				detail["message"] = original.Error()
				detail["type"] = fmt.Sprintf("%T", original)
			}

			extensions := map[string]interface{}{}
			for k, v := range fe.Extensions {
				extensions[k] = v
			}
			extensions["detail"] = detail
			fe.Extensions = extensions
		}

		formatted[i] = fe
	}

	return formatted
}

// unwrapGQLError returns the error a resolver returned, unwrapping the
// *gqlerrors.Error values graphql-go wraps it in. Errors raised by graphql-go
// itself are returned as they are.
func unwrapGQLError(err error) error {
	for {
		gqlErr, ok := err.(*gqlerrors.Error)
		if !ok || gqlErr == nil || gqlErr.OriginalError == nil {
			return err
		}
		err = gqlErr.OriginalError
	}
}

// writeErrors writes a request error response
func (s *Server) writeErrors(w http.ResponseWriter, status int, errs interface{}) {
	formatted := utils.GQLErrors(errs)
	s.log.WithField("status", status).Debugf("rejected graphql request: %s", formatted[0].Message)
	s.writeJSON(w, status, map[string]interface{}{"errors": formatted})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	var (
		buff []byte
		err  error
	)

	if s.options.Pretty {
		buff, err = json.MarshalIndent(v, "", "\t")
	} else {
		buff, err = json.Marshal(v)
	}

	if err != nil {
		s.log.WithError(err).Errorf("failed to marshal response")
		status = http.StatusInternalServerError
		buff, _ = json.Marshal(map[string]interface{}{"errors": utils.GQLErrors(err)})
	}

	// use proper JSON Header
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buff)

	return buff
}
