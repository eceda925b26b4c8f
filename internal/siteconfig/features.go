// Package siteconfig resolves a site intent into a concrete CMS
// configuration: the template, the enabled/disabled feature set, and the
// environment variables pushed to the hosting provider. Resolution is a
// pure function of the intent; the same intent always yields the same
// configuration.
package siteconfig

// Feature is the slug of a CMS collection or feature toggle.
type Feature string

// Known features. The universe of every feature the CMS ships; a resolved
// configuration partitions this set into enabled and disabled.
const (
	FeaturePages             Feature = "pages"
	FeatureMedia             Feature = "media"
	FeatureSEO               Feature = "seo"
	FeatureRedirects         Feature = "redirects"
	FeatureForms             Feature = "forms"
	FeatureBlogPosts         Feature = "blog-posts"
	FeatureCases             Feature = "cases"
	FeatureFAQ               Feature = "faq"
	FeatureTestimonials      Feature = "testimonials"
	FeatureProducts          Feature = "products"
	FeatureProductCategories Feature = "product-categories"
	FeatureBrands            Feature = "brands"
	FeatureOrders            Feature = "orders"
	FeatureCustomerGroups    Feature = "customer-groups"
	FeatureOrderLists        Feature = "order-lists"
	FeaturePartners          Feature = "partners"
)

// Universe returns every known feature slug.
func Universe() []Feature {
	return []Feature{
		FeaturePages,
		FeatureMedia,
		FeatureSEO,
		FeatureRedirects,
		FeatureForms,
		FeatureBlogPosts,
		FeatureCases,
		FeatureFAQ,
		FeatureTestimonials,
		FeatureProducts,
		FeatureProductCategories,
		FeatureBrands,
		FeatureOrders,
		FeatureCustomerGroups,
		FeatureOrderLists,
		FeaturePartners,
	}
}

// baseline is enabled for every site regardless of intent.
var baseline = []Feature{
	FeaturePages,
	FeatureMedia,
	FeatureSEO,
	FeatureRedirects,
	FeatureForms,
}

// websiteSubtypeFeatures maps a website subtype to the features it implies.
var websiteSubtypeFeatures = map[WebsiteSubtype][]Feature{
	SubtypeCorporate: {FeatureFAQ},
	SubtypePortfolio: {FeatureCases},
	SubtypeBlog:      {FeatureBlogPosts},
	SubtypeAgency:    {FeatureCases, FeatureFAQ},
	SubtypeLanding:   {FeatureFAQ},
}

// commerceBundle is enabled for every webshop regardless of shop model.
var commerceBundle = []Feature{
	FeatureProducts,
	FeatureProductCategories,
	FeatureBrands,
	FeatureOrders,
	FeatureTestimonials,
	FeatureFAQ,
}

// b2bBundle is additionally enabled for b2b and hybrid shop models.
var b2bBundle = []Feature{
	FeatureCustomerGroups,
	FeatureOrderLists,
	FeaturePartners,
}

// pageFeatures maps an explicitly selected page to the feature it implies.
// A selected page enables its feature even when the subtype mapping did not.
var pageFeatures = map[string]Feature{
	"blog":         FeatureBlogPosts,
	"cases":        FeatureCases,
	"portfolio":    FeatureCases,
	"faq":          FeatureFAQ,
	"testimonials": FeatureTestimonials,
}
