/*
 * @module service/anomaly/templates
 * @description 异常描述与诊断SQL模板，按问题类型生成人类可读描述和只读排查SQL
 * @architecture 服务层 - 模板生成
 * @documentReference dev_docs/requirements.md
 * @stateFlow 检查结果 -> 问题类型分发 -> 描述 + 诊断SQL
 * @rules 诊断SQL仅允许SELECT；表名列名必须通过标识符白名单校验，否则不生成SQL
 * @dependencies regexp, github.com/spf13/cast
 * @refs service/anomaly/extractor.go, service/checks
 */

package anomaly

import (
	"fmt"
	"regexp"

	"datasentinel-service/service/models"

	"github.com/spf13/cast"
)

// 合法SQL标识符：字母或下划线开头，仅含字母数字下划线
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// isValidIdentifier 校验表名/列名是否可安全嵌入SQL
func isValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// BuildDescription 根据检查结果生成异常描述
func BuildDescription(result models.CheckResult) string {
	switch result.CheckType {
	case models.IssueTypeNullRate:
		return fmt.Sprintf("表 %s 列 %s 空值率 %.1f%% 超过阈值 %.1f%%",
			result.TableName, result.ColumnName, result.Value*100, result.Threshold*100)
	case models.IssueTypeTypeConsistency:
		return fmt.Sprintf("表 %s 列 %s 采样中出现 %d 种运行时类型，类型不一致",
			result.TableName, result.ColumnName, int(result.Value))
	case models.IssueTypeUniqueness:
		return fmt.Sprintf("表 %s 列 %s 唯一率 %.1f%% 低于阈值 %.1f%%",
			result.TableName, result.ColumnName, result.Value*100, result.Threshold*100)
	case models.IssueTypeOutliers:
		return fmt.Sprintf("表 %s 列 %s 离群值比例 %.1f%% 超过阈值 %.1f%%（3σ准则）",
			result.TableName, result.ColumnName, result.Value*100, result.Threshold*100)
	default:
		return fmt.Sprintf("表 %s 列 %s 检查 %s 未通过",
			result.TableName, result.ColumnName, result.CheckType)
	}
}

// BuildDiagnosticSQL 根据检查结果生成只读诊断SQL
// 标识符校验失败时返回空字符串
func BuildDiagnosticSQL(result models.CheckResult) string {
	if !isValidIdentifier(result.TableName) || !isValidIdentifier(result.ColumnName) {
		return ""
	}

	table := result.TableName
	column := result.ColumnName

	switch result.CheckType {
	case models.IssueTypeNullRate:
		return fmt.Sprintf(
			"SELECT COUNT(*) AS null_count FROM staging.%s WHERE %s IS NULL",
			table, column)
	case models.IssueTypeTypeConsistency:
		return fmt.Sprintf(
			"SELECT pg_typeof(%s) AS value_type, COUNT(*) AS cnt FROM staging.%s GROUP BY value_type ORDER BY cnt DESC",
			column, table)
	case models.IssueTypeUniqueness:
		return fmt.Sprintf(
			"SELECT %s, COUNT(*) AS cnt FROM staging.%s GROUP BY %s HAVING COUNT(*) > 1 ORDER BY cnt DESC LIMIT 20",
			column, table, column)
	case models.IssueTypeOutliers:
		mean := cast.ToFloat64(result.Extra["mean"])
		std := cast.ToFloat64(result.Extra["std"])
		return fmt.Sprintf(
			"SELECT * FROM staging.%s WHERE %s NOT BETWEEN %g AND %g LIMIT 20",
			table, column, mean-3*std, mean+3*std)
	default:
		return ""
	}
}
