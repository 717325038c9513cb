// Package classify maps post text and hashtags to a theme and an appeal frame.
//
// Both rule sets are first-match-wins: categories are scanned in the declared
// order and, within a category, keywords are scanned in the declared order.
// Reordering either list changes classification results.
package classify

import "strings"

// Other is returned when no rule matches.
const Other = "other"

// Rule is one category and its keyword substrings.
type Rule struct {
	Category string
	Keywords []string
}

// ThemeRules in declaration order.
var ThemeRules = []Rule{
	{Category: "campaign", Keywords: []string{"キャンペーン", "抽選", "プレゼント", "#campaign", "giveaway", "応募"}},
	{Category: "event", Keywords: []string{"イベント", "開催", "セミナー", "#event", "ウェビナー", "展示会"}},
	{Category: "new_product", Keywords: []string{"新商品", "新発売", "リリース", "発表", "新登場", "ローンチ"}},
	{Category: "brand", Keywords: []string{"ブランド", "企業理念", "ビジョン", "ミッション", "創業"}},
	{Category: "collab", Keywords: []string{"コラボ", "タイアップ", "feat", "コラボレーション", "共同"}},
	{Category: "product", Keywords: []string{"商品", "製品", "サービス", "#product", "機能", "アップデート"}},
}

// AppealFrameRules in declaration order.
var AppealFrameRules = []Rule{
	{Category: "scarcity", Keywords: []string{"限定", "残りわずか", "本日まで", "期間限定", "先着", "limited", "last chance", "only today"}},
	{Category: "social_proof", Keywords: []string{"人気", "ランキング", "no.1", "満足度", "口コミ", "レビュー", "bestseller", "best seller"}},
	{Category: "news", Keywords: []string{"お知らせ", "速報", "発表", "ニュース", "breaking", "announcement", "news"}},
	{Category: "benefit", Keywords: []string{"無料", "お得", "割引", "ポイント", "%off", "% off", "free", "save"}},
	{Category: "question", Keywords: []string{"?", "？", "どっち", "教えて", "ですか", "ますか"}},
	{Category: "humor", Keywords: []string{"笑", "www", "草", "lol", "haha", "😂"}},
	{Category: "emotional", Keywords: []string{"ありがとう", "感謝", "嬉しい", "感動", "大切", "thank", "love"}},
}

// Theme returns the first matching theme category.
func Theme(text string, hashtags []string) string {
	return match(ThemeRules, text, hashtags)
}

// AppealFrame returns the first matching appeal-frame category.
func AppealFrame(text string, hashtags []string) string {
	return match(AppealFrameRules, text, hashtags)
}

func match(rules []Rule, text string, hashtags []string) string {
	combined := strings.ToLower(text + " " + strings.Join(hashtags, " "))
	for _, rule := range rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(combined, strings.ToLower(keyword)) {
				return rule.Category
			}
		}
	}
	return Other
}
