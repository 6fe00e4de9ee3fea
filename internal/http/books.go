package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/services"
)

type BooksController struct {
	books BookService
}

func NewBooksController(books BookService) *BooksController {
	return &BooksController{books: books}
}

// List handles GET /api/books?q=&isbn=&author=&genre=&available=&limit=&offset=
func (bc *BooksController) List(c *gin.Context) {
	page, ok := parsePage(c)
	if !ok {
		return
	}
	available, ok := parseOptionalBoolQuery(c, "available")
	if !ok {
		return
	}

	filter := services.BookFilter{
		Query:  c.Query("q"),
		ISBN:   c.Query("isbn"),
		Author: c.Query("author"),
		Genre:  c.Query("genre"),
	}
	if available != nil {
		filter.AvailableOnly = *available
	}

	result, err := bc.books.List(c.Request.Context(), filter, page)
	if err != nil {
		respondServiceError(c, err, "list books")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.books.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

func (bc *BooksController) GetByISBN(c *gin.Context) {
	book, err := bc.books.GetByISBN(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		respondServiceError(c, err, "get book by isbn")
		return
	}
	c.JSON(http.StatusOK, book)
}

// Lookup returns external bibliographic data for an ISBN without adding it
// to the catalog.
func (bc *BooksController) Lookup(c *gin.Context) {
	meta, err := bc.books.LookupISBN(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		respondServiceError(c, err, "lookup isbn")
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (bc *BooksController) Create(c *gin.Context) {
	var in services.CreateBookInput
	if !bindJSON(c, &in) {
		return
	}
	book, err := bc.books.Create(c.Request.Context(), in)
	if err != nil {
		respondServiceError(c, err, "create book")
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (bc *BooksController) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var in services.UpdateBookInput
	if !bindJSON(c, &in) {
		return
	}
	book, err := bc.books.Update(c.Request.Context(), id, in)
	if err != nil {
		respondServiceError(c, err, "update book")
		return
	}
	c.JSON(http.StatusOK, book)
}

func (bc *BooksController) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.books.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "delete book")
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "book deleted"})
}
