package model

import "errors"

// Category mutation errors. All of them mean the operation was rejected
// and left state unchanged.
var (
	ErrReservedCategory = errors.New("category name is reserved")
	ErrCategoryExists   = errors.New("category already exists")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrEmptyCategory    = errors.New("category name is empty")
)
