package validation

import (
	"strings"
	"testing"
	"time"
)

func validParams() ProductParams {
	return ProductParams{
		ProductName:      "Widget",
		Description:      "A fairly long description text",
		Price:            50.0,
		LastModifiedDate: time.Date(2021, 10, 8, 0, 0, 0, 0, time.UTC),
		OwnerEmail:       "owner@test.com",
	}
}

func TestValidateProductParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ProductParams)
		valid  bool
	}{
		{
			name:   "valid baseline",
			mutate: func(p *ProductParams) {},
			valid:  true,
		},
		{
			name: "name with leading space",
			mutate: func(p *ProductParams) {
				p.ProductName = " p0"
			},
			valid: false,
		},
		{
			name: "name with trailing space",
			mutate: func(p *ProductParams) {
				p.ProductName = "p0 "
			},
			valid: false,
		},
		{
			name: "name with special character",
			mutate: func(p *ProductParams) {
				p.ProductName = "p@"
			},
			valid: false,
		},
		{
			name: "name of spaces only",
			mutate: func(p *ProductParams) {
				p.ProductName = "   "
			},
			valid: false,
		},
		{
			name: "name longer than 80",
			mutate: func(p *ProductParams) {
				p.ProductName = strings.Repeat("a", 81)
			},
			valid: false,
		},
		{
			name: "name of exactly 80",
			mutate: func(p *ProductParams) {
				p.ProductName = strings.Repeat("a", 80)
				p.Description = strings.Repeat("Test", 21)
			},
			valid: true,
		},
		{
			name: "description shorter than 20",
			mutate: func(p *ProductParams) {
				p.ProductName = "p0"
				p.Description = strings.Repeat("a", 19)
			},
			valid: false,
		},
		{
			name: "description longer than 2000",
			mutate: func(p *ProductParams) {
				p.Description = strings.Repeat("a", 2001)
			},
			valid: false,
		},
		{
			name: "description equal to name length",
			mutate: func(p *ProductParams) {
				p.ProductName = strings.Repeat("a", 20)
				p.Description = strings.Repeat("b", 20)
			},
			valid: false,
		},
		{
			name: "description one longer than name",
			mutate: func(p *ProductParams) {
				p.ProductName = strings.Repeat("a", 21)
				p.Description = strings.Repeat("b", 22)
			},
			valid: true,
		},
		{
			name: "price below minimum",
			mutate: func(p *ProductParams) {
				p.Price = 9.99
			},
			valid: false,
		},
		{
			name: "price above maximum",
			mutate: func(p *ProductParams) {
				p.Price = 10000.01
			},
			valid: false,
		},
		{
			name: "price at lower bound",
			mutate: func(p *ProductParams) {
				p.Price = 10.0
			},
			valid: true,
		},
		{
			name: "price at upper bound",
			mutate: func(p *ProductParams) {
				p.Price = 10000.0
			},
			valid: true,
		},
		{
			name: "date at lower bound is rejected",
			mutate: func(p *ProductParams) {
				p.LastModifiedDate = MinLastModifiedDate
			},
			valid: false,
		},
		{
			name: "date at upper bound is rejected",
			mutate: func(p *ProductParams) {
				p.LastModifiedDate = MaxLastModifiedDate
			},
			valid: false,
		},
		{
			name: "date just inside the range",
			mutate: func(p *ProductParams) {
				p.LastModifiedDate = MinLastModifiedDate.Add(time.Second)
			},
			valid: true,
		},
		{
			name: "empty owner email",
			mutate: func(p *ProductParams) {
				p.OwnerEmail = ""
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := ValidateProductParams(p)
			if (err == nil) != tt.valid {
				t.Fatalf("ValidateProductParams(%+v) = %v, want valid=%v", p, err, tt.valid)
			}
		})
	}
}
