package scrape

// DefaultBaseURL is the storefront this watcher was built for.
const DefaultBaseURL = "https://shopdunssweden.se/"

// DefaultCollections mirrors the storefront's menu. Used when the
// config file doesn't list collections explicitly.
func DefaultCollections() []Collection {
	return []Collection{
		{Name: "Home", Href: "/"},
		{Name: "Radish", Href: "/collections/radish/radish"},
		{Name: "Dungaree", Href: "/collections/dungaree"},
		{Name: "Long Sleeve Suit", Href: "/collections/long-sleeve-suit"},
		{Name: "Zip Suit", Href: "/collections/zip-suit"},
		{Name: "Summer Suit", Href: "/collections/short-sleeved-suit/Summer-Suit"},
		{Name: "Play suit", Href: "/collections/play-suit/Play-suit"},
		{Name: "Short Sleeved Top", Href: "/collections/short-sleeved-top"},
		{Name: "Short Pants", Href: "/collections/short-pants/Short-pants"},
		{Name: "Skater Dress", Href: "/collections/skater-dress/Skater-Dress"},
		{Name: "Baggy Pants", Href: "/collections/baggy-trousers"},
		{Name: "Long Sleeved Top", Href: "/collections/long-sleeved-top"},
		{Name: "Hood Suit", Href: "/collections/hood-suit"},
		{Name: "Long Sleeve Dress", Href: "/collections/long-sleeved-dress"},
		{Name: "LS Dress w. Gathered Skirt", Href: "/collections/long-sleeve-dress-with-gathered-skirt/Long-Sleeve-Dress-with-Gathered-Skirt"},
		{Name: "Long Sleeve Body", Href: "/collections/body"},
		{Name: "Sun Hat", Href: "/collections/sun-hat"},
		{Name: "Sleeveless Dress with Gathered Skirt", Href: "/collections/sleeveless-dress-with-gathered-skirt/Sleeveless-Dress-with-Gathered-Skirt"},
		{Name: "Babycap", Href: "/collections/babycap"},
	}
}
