package siteconfig

import (
	"fmt"
	"sort"
	"strings"
)

// Environment variable names pushed to the hosting provider. Downstream
// readers treat an empty DISABLED_COLLECTIONS as "nothing disabled".
const (
	EnvTemplateID          = "TEMPLATE_ID"
	EnvDisabledCollections = "DISABLED_COLLECTIONS"
	EnvShopModel           = "SHOP_MODEL"
	EnvPricingModel        = "PRICING_MODEL"
	EnvCustomerGroups      = "CUSTOMER_GROUPS_ENABLED"
	EnvOrderApproval       = "ORDER_APPROVAL_REQUIRED"
	EnvHideGuestPrices     = "HIDE_GUEST_PRICES"
	EnvQuoteRequests       = "QUOTE_REQUESTS_ENABLED"
	EnvBulkOrdering        = "BULK_ORDERING_ENABLED"
)

// Template identifiers per subtype/shop model.
const (
	TemplateCorporate      = "corporate"
	TemplatePortfolio      = "portfolio"
	TemplateBlog           = "blog"
	TemplateAgency         = "agency"
	TemplateLanding        = "landing"
	TemplateShopB2C        = "shop-b2c"
	TemplateShopB2B        = "shop-b2b"
	TemplateHybridCommerce = "hybrid-commerce"

	defaultPricingModel = "retail"
)

// Config is the resolved CMS configuration for a site intent. EnabledFeatures
// and DisabledFeatures are sorted and together partition the feature universe.
type Config struct {
	TemplateID           string            `json:"template_id"`
	EnabledFeatures      []Feature         `json:"enabled_features"`
	DisabledFeatures     []Feature         `json:"disabled_features"`
	EnvironmentVariables map[string]string `json:"environment_variables"`
	Summary              string            `json:"summary"`
}

// Enabled reports whether a feature is in the enabled set.
func (c Config) Enabled(f Feature) bool {
	for _, e := range c.EnabledFeatures {
		if e == f {
			return true
		}
	}
	return false
}

// DisabledList returns the disabled features as the comma-separated form
// pushed to the provider in DISABLED_COLLECTIONS.
func (c Config) DisabledList() string {
	parts := make([]string, len(c.DisabledFeatures))
	for i, f := range c.DisabledFeatures {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

// Resolve turns a site intent into a concrete CMS configuration. It is total
// and deterministic: every intent, including nil, resolves without error, and
// equal intents resolve to identical configurations.
func Resolve(intent *SiteIntent) Config {
	enabled := make(map[Feature]bool, len(Universe()))
	for _, f := range baseline {
		enabled[f] = true
	}

	if intent != nil {
		switch intent.PrimaryType {
		case PrimaryWebsite:
			applyWebsiteFeatures(intent, enabled)
		case PrimaryWebshop:
			applyWebshopFeatures(intent, enabled)
		case PrimaryHybrid:
			// A hybrid never loses a feature either branch would grant.
			applyWebsiteFeatures(intent, enabled)
			applyWebshopFeatures(intent, enabled)
		}
	}

	cfg := Config{
		TemplateID:       resolveTemplate(intent),
		EnabledFeatures:  sortedFeatures(enabled, true),
		DisabledFeatures: sortedFeatures(enabled, false),
	}
	cfg.EnvironmentVariables = buildEnvironment(intent, cfg)
	cfg.Summary = buildSummary(intent, cfg)
	return cfg
}

func applyWebsiteFeatures(intent *SiteIntent, enabled map[Feature]bool) {
	for _, f := range websiteSubtypeFeatures[intent.WebsiteSubtype] {
		enabled[f] = true
	}
	for _, page := range intent.SelectedPages {
		if f, ok := pageFeatures[strings.ToLower(strings.TrimSpace(page))]; ok {
			enabled[f] = true
		}
	}
}

func applyWebshopFeatures(intent *SiteIntent, enabled map[Feature]bool) {
	for _, f := range commerceBundle {
		enabled[f] = true
	}
	if intent.ShopModel == ShopB2B || intent.ShopModel == ShopHybrid {
		for _, f := range b2bBundle {
			enabled[f] = true
		}
	}
}

// resolveTemplate selects the template via the fixed subtype/shop-model table.
func resolveTemplate(intent *SiteIntent) string {
	if intent == nil {
		return TemplateCorporate
	}
	switch intent.PrimaryType {
	case PrimaryWebshop:
		if intent.ShopModel == ShopB2B || intent.ShopModel == ShopHybrid {
			return TemplateShopB2B
		}
		return TemplateShopB2C
	case PrimaryHybrid:
		return TemplateHybridCommerce
	default:
		switch intent.WebsiteSubtype {
		case SubtypePortfolio:
			return TemplatePortfolio
		case SubtypeBlog:
			return TemplateBlog
		case SubtypeAgency:
			return TemplateAgency
		case SubtypeLanding:
			return TemplateLanding
		default:
			return TemplateCorporate
		}
	}
}

// buildEnvironment assembles the variables pushed to the hosting provider.
// Boolean flags are present only when true; absence means false.
func buildEnvironment(intent *SiteIntent, cfg Config) map[string]string {
	env := map[string]string{
		EnvTemplateID:          cfg.TemplateID,
		EnvDisabledCollections: cfg.DisabledList(),
	}

	if intent == nil || !intent.IsCommerce() {
		return env
	}

	shopModel := intent.ShopModel
	if shopModel == "" {
		shopModel = ShopB2C
	}
	env[EnvShopModel] = string(shopModel)

	pricing := intent.PricingModel
	if pricing == "" {
		pricing = defaultPricingModel
	}
	env[EnvPricingModel] = pricing

	if cfg.Enabled(FeatureCustomerGroups) {
		env[EnvCustomerGroups] = "true"
	}
	if intent.RequireOrderApproval {
		env[EnvOrderApproval] = "true"
	}
	if intent.HideGuestPrices {
		env[EnvHideGuestPrices] = "true"
	}
	if intent.EnableQuoteRequests {
		env[EnvQuoteRequests] = "true"
	}
	if intent.EnableBulkOrdering {
		env[EnvBulkOrdering] = "true"
	}
	return env
}

// buildSummary produces the one-line description used in progress events
// and audit logs.
func buildSummary(intent *SiteIntent, cfg Config) string {
	shape := "baseline site"
	if intent != nil {
		switch intent.PrimaryType {
		case PrimaryWebsite:
			subtype := intent.WebsiteSubtype
			if subtype == "" {
				subtype = SubtypeCorporate
			}
			shape = fmt.Sprintf("%s website", subtype)
		case PrimaryWebshop:
			model := intent.ShopModel
			if model == "" {
				model = ShopB2C
			}
			shape = fmt.Sprintf("%s webshop", model)
		case PrimaryHybrid:
			shape = "hybrid website + webshop"
		}
	}
	return fmt.Sprintf("%s on template %q with %d of %d features enabled",
		shape, cfg.TemplateID, len(cfg.EnabledFeatures), len(Universe()))
}

// sortedFeatures returns the features whose enabled-map value matches want,
// sorted by slug. The complement walk over the universe keeps the partition
// total: every known feature lands in exactly one of the two sets.
func sortedFeatures(enabled map[Feature]bool, want bool) []Feature {
	out := make([]Feature, 0, len(Universe()))
	for _, f := range Universe() {
		if enabled[f] == want {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
