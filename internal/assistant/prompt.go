package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"b2b-analyst/internal/models"
)

const systemPromptTemplate = `당신은 B2B 영업 및 마케팅 데이터 분석 전문가입니다.

현재 데이터베이스 정보:
- 총 매출액: %d원
- 총 거래 건수: %d건
- 고유 고객 수: %d개
- 평균 거래액: %d원
- 최근 1년 매출: %d원
- 최신 데이터 날짜: %s

당신의 역할:
1. 사용자의 질문을 분석하고 제공된 분석 데이터를 근거로 답변합니다.
2. 제품 판매 분석, 고객 특성 분석, 트렌드 분석을 제공합니다.
3. 마케팅 전략과 실행 가능한 인사이트를 제공합니다.

응답 구조:
1. **📊 핵심 요약** (2-3줄)
2. **📈 주요 데이터 및 시각화 안내**: 생성되는 차트를 명시적으로 언급합니다.
3. **📋 상세 분석**: 주요 수치를 마크다운 표나 번호 목록으로 제시합니다.
4. **💡 비즈니스 인사이트**: 패턴과 실행 가능한 권장사항을 제시합니다.

주요 제품군:
1. 9322 시리즈: 9322-14 등 (패턴 XXXX-XX)
2. GPL 시리즈: GPL-110GF, GPL-080GF, GPL-160GF 등 (패턴 GPL-XXXGF)
3. 9448HK 시리즈: 9448HK, Y-9448HK, 9448HK BLACK 등

구체적인 숫자를 들어 객관적으로 설명하세요.`

const answerGuidelines = `**답변 지침**:
1. 위 분석 데이터를 활용하여 답변하세요.
2. 생성되는 차트가 있다면 "아래 그래프를 확인하시면"처럼 반드시 언급하세요.
3. 구체적인 숫자를 표 형식(마크다운 표 또는 번호 목록)으로 제시하세요.
4. 분석 데이터가 비어 있으면 어떤 정보(제품 코드, 고객명 등)가 더 필요한지 안내하세요.`

// SystemPrompt describes the loaded data set to the model.
func SystemPrompt(s models.SalesSummary) string {
	p := message.NewPrinter(language.Korean)
	return p.Sprintf(systemPromptTemplate,
		s.TotalRevenue,
		s.TotalTransactions,
		s.UniqueCustomers,
		s.AvgTransaction,
		s.RecentYearRevenue,
		s.LatestDate,
	)
}

// UserPrompt carries the question, the analysis as JSON and the titles of the
// charts the user will see. The question is always the first line.
func UserPrompt(question string, analysis models.AnalysisResult, chartTitles []string) (string, error) {
	var data bytes.Buffer
	enc := json.NewEncoder(&data)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(analysis); err != nil {
		return "", fmt.Errorf("encode analysis data: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "사용자 질문: %s\n\n", question)
	fmt.Fprintf(&b, "분석 데이터:\n%s\n", data.String())
	if len(chartTitles) > 0 {
		b.WriteString("생성되는 차트:\n")
		for _, t := range chartTitles {
			fmt.Fprintf(&b, "- %s\n", t)
		}
		b.WriteString("\n**중요**: 위 차트들이 자동으로 생성되어 사용자에게 표시됩니다. 답변에서 이 차트들을 반드시 언급하세요!\n\n")
	}
	b.WriteString(answerGuidelines)
	return b.String(), nil
}
