// Package api exposes the repository over HTTP.
//
// Routes:
//   - POST /functions/:name                          execute one stored function
//   - POST /transactions/:name                       begin a ledger transaction
//   - POST /transactions/:name/operations/:kind      execute a mutating function recorded under the transaction
//   - POST /transactions/:name/commit?pop=true       return (and optionally pop) the recorded entries
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/marcodd23/go-micro-dbfunc/pkg/errorx"
	"github.com/marcodd23/go-micro-dbfunc/pkg/ledger"
	"github.com/marcodd23/go-micro-dbfunc/pkg/repository"
	"github.com/marcodd23/go-micro-dbfunc/pkg/validator"
	"github.com/pkg/errors"
)

// Resource - HTTP handlers over a repository.
type Resource struct {
	repo      *repository.Repository
	validator *validator.Validator
}

// Register - register the routes on router.
func Register(router fiber.Router, repo *repository.Repository) {
	res := &Resource{repo: repo, validator: validator.NewValidator()}

	router.Post("/functions/:name", res.execFunction)
	router.Post("/transactions/:name", res.beginTransaction)
	router.Post("/transactions/:name/operations/:kind", res.execOperation)
	router.Post("/transactions/:name/commit", res.commitTransaction)
}

// execFunction - the Result is returned with 200 also when its status is ERROR.
func (res *Resource) execFunction(c *fiber.Ctx) error {
	var req FunctionRequest
	if err := res.parse(c, &req); err != nil {
		return err
	}

	call, err := req.toCall(c.Params("name"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := res.repo.Exec(c.UserContext(), call)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(result)
}

func (res *Resource) beginTransaction(c *fiber.Ctx) error {
	name := c.Params("name")

	if err := res.repo.BeginTxn(name); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": name})
}

func (res *Resource) execOperation(c *fiber.Ctx) error {
	kind, ok := ledger.ParseOperationKind(c.Params("kind"))
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "unknown operation kind "+c.Params("kind"))
	}

	var req OperationRequest
	if err := res.parse(c, &req); err != nil {
		return err
	}

	call, err := req.toCall(req.Function)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := res.repo.ExecTxn(c.UserContext(), kind, call, req.Table, c.Params("name"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(result)
}

func (res *Resource) commitTransaction(c *fiber.Ctx) error {
	entries, err := res.repo.CommitTxn(c.UserContext(), c.Params("name"), c.QueryBool("pop"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(fiber.Map{"transaction": c.Params("name"), "entries": entries})
}

func (res *Resource) parse(c *fiber.Ctx, dest any) error {
	if len(c.Body()) > 0 {
		if err := decodeBody(c.Body(), dest); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
		}
	}

	if err := res.validator.Validate(dest); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return nil
}

func toHTTPError(err error) error {
	if errors.Is(err, ledger.ErrTransactionNotBegun) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	var cfgErr *errorx.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Code == errorx.ErrorInvalidCall {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return err
}
