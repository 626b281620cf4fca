// Package taxfile lee el archivo YAML que sobrescribe las tasas de IVA integradas.
//
//	jurisdictions:
//	  - country: CH
//	    currency: CHF
//	    vat_label: MWST
//	    rates:
//	      - { label: Normalsatz, rate: "8.1", class: standard }
//	      - { label: befreit, rate: "0", class: zero }
package taxfile

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/jhoicas/crm-invoicing/internal/domain/taxrate"
)

type fileRate struct {
	Label string `mapstructure:"label"`
	Rate  string `mapstructure:"rate"`
	Class string `mapstructure:"class"`
}

type fileJurisdiction struct {
	Country  string     `mapstructure:"country"`
	Currency string     `mapstructure:"currency"`
	VATLabel string     `mapstructure:"vat_label"`
	Rates    []fileRate `mapstructure:"rates"`
}

type file struct {
	Jurisdictions []fileJurisdiction `mapstructure:"jurisdictions"`
}

// Load lee y convierte el archivo. La validación de negocio (moneda ISO, una sola tasa
// normal) la hace taxrate.NewTable al construir la tabla.
func Load(path string) ([]taxrate.Jurisdiction, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("taxfile: leer %s: %w", path, err)
	}
	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("taxfile: formato inválido en %s: %w", path, err)
	}

	out := make([]taxrate.Jurisdiction, 0, len(f.Jurisdictions))
	for _, fj := range f.Jurisdictions {
		j := taxrate.Jurisdiction{CountryCode: fj.Country, Currency: fj.Currency, VATLabel: fj.VATLabel}
		for _, fr := range fj.Rates {
			rate, err := decimal.NewFromString(fr.Rate)
			if err != nil {
				return nil, fmt.Errorf("taxfile: tasa inválida %q para %s: %w", fr.Rate, fj.Country, err)
			}
			class, err := parseClass(fr.Class)
			if err != nil {
				return nil, fmt.Errorf("taxfile: %s: %w", fj.Country, err)
			}
			j.Rates = append(j.Rates, taxrate.TaxRate{Label: fr.Label, Rate: rate, Class: class})
		}
		out = append(out, j)
	}
	return out, nil
}

// BuildTable arma la tabla con las tasas integradas y, si path no está vacío, las del archivo encima.
func BuildTable(path, fallback string) (*taxrate.Table, error) {
	jurisdictions := taxrate.BuiltinJurisdictions()
	if path != "" {
		overrides, err := Load(path)
		if err != nil {
			return nil, err
		}
		jurisdictions = taxrate.MergeJurisdictions(jurisdictions, overrides)
	}
	return taxrate.NewTable(jurisdictions, fallback)
}

func parseClass(s string) (taxrate.Class, error) {
	switch c := taxrate.Class(s); c {
	case taxrate.ClassStandard, taxrate.ClassReduced, taxrate.ClassZero:
		return c, nil
	case "":
		return taxrate.ClassReduced, nil
	}
	return "", fmt.Errorf("clase de tasa desconocida %q", s)
}
