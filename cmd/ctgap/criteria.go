package main

import (
	"errors"
	"flag"
	"strings"

	"github.com/guarzo/ctgap/internal/config"
	"github.com/guarzo/ctgap/internal/model"
)

const defaultMaxPrice = 1000

// expansionResolver turns user input into expansion ids.
type expansionResolver interface {
	Selectable() ([]model.Expansion, error)
	ResolveCodes(codes []string) ([]int, error)
}

type criteriaFlags struct {
	expansions string
	all        bool
	languages  string
	rarities   string
	minPrice   float64
	maxPrice   float64
	minGap     float64
	hubOnly    bool
	save       bool
}

// bindCriteria registers the scan selection flags on fs, defaulting to the
// saved selection.
func bindCriteria(fs *flag.FlagSet, sel config.Selection) *criteriaFlags {
	maxPrice := sel.MaxPrice
	if maxPrice == 0 {
		maxPrice = defaultMaxPrice
	}

	cf := &criteriaFlags{}
	fs.StringVar(&cf.expansions, "exp", strings.Join(sel.Expansions, ","), "comma-separated expansion codes or ids")
	fs.BoolVar(&cf.all, "all", false, "scan every expansion that is not excluded")
	fs.StringVar(&cf.languages, "lang", strings.Join(sel.Languages, ","), "comma-separated language codes (en,jp,fr,kr,zh-cn)")
	fs.StringVar(&cf.rarities, "rarity", strings.Join(sel.Rarities, ","), "comma-separated rarities, matched exactly")
	fs.Float64Var(&cf.minPrice, "min", sel.MinPrice, "minimum cheapest price")
	fs.Float64Var(&cf.maxPrice, "max", maxPrice, "maximum second cheapest price")
	fs.Float64Var(&cf.minGap, "gap", sel.MinGap, "minimum absolute gap")
	fs.BoolVar(&cf.hubOnly, "hub", sel.HubOnly, "only consider listings that ship through the hub")
	fs.BoolVar(&cf.save, "save", false, "remember this selection")
	return cf
}

func (cf *criteriaFlags) selection() config.Selection {
	langs := splitList(cf.languages)
	for i, l := range langs {
		langs[i] = strings.ToLower(l)
	}
	return config.Selection{
		Languages:  langs,
		Rarities:   splitList(cf.rarities),
		Expansions: splitList(cf.expansions),
		MinPrice:   cf.minPrice,
		MaxPrice:   cf.maxPrice,
		MinGap:     cf.minGap,
		HubOnly:    cf.hubOnly,
	}
}

// criteria resolves the flags into scan criteria.
func (cf *criteriaFlags) criteria(exps expansionResolver) (model.Criteria, error) {
	sel := cf.selection()

	var ids []int
	switch {
	case cf.all:
		selectable, err := exps.Selectable()
		if err != nil {
			return model.Criteria{}, err
		}
		for _, e := range selectable {
			ids = append(ids, e.ID)
		}
	case len(sel.Expansions) > 0:
		resolved, err := exps.ResolveCodes(sel.Expansions)
		if err != nil {
			return model.Criteria{}, err
		}
		ids = resolved
	}
	if len(ids) == 0 {
		return model.Criteria{}, errors.New("no expansions selected: pass -exp or -all (run sync first)")
	}
	return sel.Criteria(ids), nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
