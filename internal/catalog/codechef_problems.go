package catalog

import "github.com/hitoshi/judgelink/internal/model"

// codechefProblems はCodeChef用の厳選問題リスト。
// CodeChefは一括取得エンドポイントを持たないため、
// 入門レベルの定番問題を同梱する。ネットワークもキャッシュも使わない。
var codechefProblems = []model.Problem{
	{ID: "TEST", Name: "Life, the Universe, and Everything", URL: "https://www.codechef.com/problems/TEST"},
	{ID: "HS08TEST", Name: "ATM", URL: "https://www.codechef.com/problems/HS08TEST"},
	{ID: "INTEST", Name: "Enormous Input Test", URL: "https://www.codechef.com/problems/INTEST"},
	{ID: "FLOW001", Name: "Add Two Numbers", URL: "https://www.codechef.com/problems/FLOW001"},
	{ID: "FLOW002", Name: "Find Remainder", URL: "https://www.codechef.com/problems/FLOW002"},
	{ID: "FLOW004", Name: "First and Last Digit", URL: "https://www.codechef.com/problems/FLOW004"},
	{ID: "FLOW006", Name: "Sum of Digits", URL: "https://www.codechef.com/problems/FLOW006"},
	{ID: "FLOW007", Name: "Reverse The Number", URL: "https://www.codechef.com/problems/FLOW007"},
	{ID: "START01", Name: "Number Mirror", URL: "https://www.codechef.com/problems/START01"},
	{ID: "FCTRL2", Name: "Small factorials", URL: "https://www.codechef.com/problems/FCTRL2"},
	{ID: "TSORT", Name: "Turbo Sort", URL: "https://www.codechef.com/problems/TSORT"},
	{ID: "LUCKFOUR", Name: "Lucky Four", URL: "https://www.codechef.com/problems/LUCKFOUR"},
}
