package judge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newCCTestClient はhttptestサーバーを指すCodeChefClientを生成する。
func newCCTestClient(t *testing.T, handler http.HandlerFunc) *CodeChefClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewCodeChefClient(NewCodeChefHTTPClient(5*time.Second), NewPacer(0), newTestLogger())
	c.base = server.URL
	return c
}

func TestCodeChefClient_FetchProfile_ParsesRatingAndStars(t *testing.T) {
	client := newCCTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/chef" {
			t.Errorf("path = %q, want /users/chef", r.URL.Path)
		}
		w.Write([]byte(`<html>
			<div class="rating-header">
				<div class="rating-number">1489</div>
				<span class="rating">2★</span>
			</div>
		</html>`))
	})

	profile, err := client.FetchProfile(context.Background(), "chef")
	if err != nil {
		t.Fatalf("FetchProfile がエラーを返した: %v", err)
	}
	if profile.Handle != "chef" {
		t.Errorf("Handle = %q, want chef", profile.Handle)
	}
	if profile.Rating != 1489 {
		t.Errorf("Rating = %d, want 1489", profile.Rating)
	}
	if profile.Rank != "2★" {
		t.Errorf("Rank = %q, want 2★", profile.Rank)
	}
}

func TestCodeChefClient_FetchProfile_UnparsableRatingDegrades(t *testing.T) {
	client := newCCTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>completely different markup</body></html>`))
	})

	profile, err := client.FetchProfile(context.Background(), "chef")
	if err != nil {
		t.Fatalf("FetchProfile がエラーを返した: %v", err)
	}
	if profile.Rating != 0 || profile.Rank != "" {
		t.Errorf("パース不能なページではrating/rankは空のまま: rating=%d rank=%q", profile.Rating, profile.Rank)
	}
}

func TestCodeChefClient_ValidateUser_RedirectMeansNotFound(t *testing.T) {
	client := newCCTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})

	ok, err := client.ValidateUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ValidateUser がエラーを返した: %v", err)
	}
	if ok {
		t.Error("リダイレクトされたユーザーページでValidateUserがtrueを返した")
	}

	_, err = client.FetchProfile(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCodeChefClient_RecentSubmissions_ParsesRows(t *testing.T) {
	content := `<table>
		<tr><th>Time</th><th>Problem</th><th>Result</th></tr>
		<tr>
			<td>02:15 PM 25/08/26</td>
			<td><a href="/problems/TEST">TEST</a></td>
			<td><span title="compilation error">(CTE)</span></td>
		</tr>
		<tr>
			<td>5 min ago</td>
			<td><a href="/problems/FLOW001">FLOW001</a></td>
			<td><span title="accepted">(100)</span></td>
		</tr>
	</table>`
	payload, _ := json.Marshal(map[string]string{"content": content})

	client := newCCTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recent/user" {
			t.Errorf("path = %q, want /recent/user", r.URL.Path)
		}
		if r.URL.Query().Get("user_handle") != "chef" {
			t.Errorf("user_handle = %q, want chef", r.URL.Query().Get("user_handle"))
		}
		w.Write(payload)
	})

	now := time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	subs, err := client.RecentSubmissions(context.Background(), "chef", 10)
	if err != nil {
		t.Fatalf("RecentSubmissions がエラーを返した: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("提出件数 = %d, want 2", len(subs))
	}

	if subs[0].ProblemRef != "TEST" {
		t.Errorf("ProblemRef = %q, want TEST", subs[0].ProblemRef)
	}
	if subs[0].Verdict != "compilation error" {
		t.Errorf("Verdict = %q, want %q", subs[0].Verdict, "compilation error")
	}
	wantTime, _ := time.Parse(ccTimeLayout, "02:15 PM 25/08/26")
	if !subs[0].SubmittedAt.Equal(wantTime) {
		t.Errorf("SubmittedAt = %v, want %v", subs[0].SubmittedAt, wantTime)
	}

	// 相対表記の行は now からの差し引きで解決される
	if subs[1].ProblemRef != "FLOW001" {
		t.Errorf("ProblemRef = %q, want FLOW001", subs[1].ProblemRef)
	}
	if want := now.Add(-5 * time.Minute); !subs[1].SubmittedAt.Equal(want) {
		t.Errorf("SubmittedAt = %v, want %v", subs[1].SubmittedAt, want)
	}
}

func TestCodeChefClient_RecentSubmissions_SkipsRowsWithoutTimestamp(t *testing.T) {
	content := `<table>
		<tr>
			<td>sometime</td>
			<td><a href="/problems/TEST">TEST</a></td>
			<td><span title="compilation error">(CTE)</span></td>
		</tr>
	</table>`
	payload, _ := json.Marshal(map[string]string{"content": content})

	client := newCCTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	})

	subs, err := client.RecentSubmissions(context.Background(), "chef", 10)
	if err != nil {
		t.Fatalf("RecentSubmissions がエラーを返した: %v", err)
	}
	// 時刻が読めない行を通すと開始時刻フロアの判定が狂うためスキップされる
	if len(subs) != 0 {
		t.Errorf("提出件数 = %d, want 0", len(subs))
	}
}

func TestCodeChefClient_RecentSubmissions_GarbageDegradesToEmpty(t *testing.T) {
	client := newCCTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json at all</html>`))
	})

	subs, err := client.RecentSubmissions(context.Background(), "chef", 10)
	if err != nil {
		t.Fatalf("パース不能なレスポンスはエラーにせず空に退化すべき: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("提出件数 = %d, want 0", len(subs))
	}
}

func TestCodeChefClient_ServerError_ReturnsBackendUnavailable(t *testing.T) {
	client := newCCTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.RecentSubmissions(context.Background(), "chef", 10)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestCodeChefClient_IsCompileError_CaseInsensitiveSubstring(t *testing.T) {
	c := NewCodeChefClient(nil, NewPacer(0), newTestLogger())

	cases := []struct {
		verdict string
		want    bool
	}{
		{"compilation error", true},
		{"Compilation Error", true},
		{"COMPILE ERROR", true},
		{"wrong answer (CTE)", true}, // title属性の揺れに備えた部分一致
		{"(CTE)", true},
		{"accepted", false},
		{"wrong answer", false},
		{"time limit exceeded", false},
	}
	for _, tc := range cases {
		if got := c.IsCompileError(tc.verdict); got != tc.want {
			t.Errorf("IsCompileError(%q) = %v, want %v", tc.verdict, got, tc.want)
		}
	}
}

func TestCodeChefClient_ProblemURL(t *testing.T) {
	c := NewCodeChefClient(nil, NewPacer(0), newTestLogger())

	got := c.ProblemURL("TEST")
	want := "https://www.codechef.com/problems/TEST"
	if got != want {
		t.Errorf("ProblemURL = %q, want %q", got, want)
	}
}
