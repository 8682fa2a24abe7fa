// Package message holds the user-facing texts shown by the register.
package message

// Proxy error bodies
const (
	ProductNotFound   = "商品が見つかりません"
	LookupFailed      = "商品情報の取得中にエラーが発生しました"
	TransactionFailed = "取引処理中にエラーが発生しました"
	CodeRequired      = "バーコードを入力してください"
)

// Register notices
const (
	NoticeNotFound       = "その商品、取り扱ってへんねん。ごめんやで！！"
	NoticeLookupFailed   = "商品情報の取得中にエラーが発生しました。"
	NoticeFieldsRequired = "すべての項目を入力してください"
	NoticeInvalidPrice   = "正しい価格を入力してください"
	NoticeTotalTooLarge  = "合計金額が上限を超えています"
	NoticeEmptyList      = "購入する商品がありません"
	NoticePurchaseFailed = "購入処理中にエラーが発生しました。もう一度お試しください。"
	NoticeCameraError    = "カメラにアクセスできませんでした。カメラの権限を確認してください。"
	NoticeScanFailed     = "バーコードを読み取れませんでした。もう一度スキャンしてください。"
)
