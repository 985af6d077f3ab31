package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/ecaldas/ans-expense-tracker/internal/bigquery"
	"github.com/ecaldas/ans-expense-tracker/internal/logger"
)

// SyncAggregates mirrors the per-operator expense summaries from BigQuery
// into a Notion database. The Operadora title property is the sync key:
// pages whose operator no longer appears in the summaries are archived,
// existing pages are updated in place, and missing operators get new pages.
func SyncAggregates(ctx context.Context, repo bigquery.AnalyticsRepository, notionClient NotionService, notionDBID string, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Bool("dry_run", dryRun).
		Msg("Starting aggregate sync to Notion")

	aggregates, err := repo.AggregatesByOperator(ctx)
	if err != nil {
		return fmt.Errorf("failed to query aggregates: %w", err)
	}

	log.Info().Int("aggregate_count", len(aggregates)).Msg("Retrieved aggregates from BigQuery")

	// Build set of valid operator names from BigQuery
	validOperators := make(map[string]bool)
	for _, agg := range aggregates {
		validOperators[agg.RazaoSocial] = true
	}

	// Query all existing pages from Notion
	log.Info().Msg("Querying existing pages from Notion")
	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	// Map operator name -> page ID for the update path
	existingPages := make(map[string]string)
	for _, page := range notionPages {
		name := extractOperatorName(page)
		if name != "" {
			existingPages[name] = string(page.ID)
		}
	}

	// Archive stale pages (operators no longer in the summaries)
	var deleted int
	for _, page := range notionPages {
		name := extractOperatorName(page)

		if name == "" || !validOperators[name] {
			if dryRun {
				log.Info().
					Str("razao_social", name).
					Str("page_id", string(page.ID)).
					Msg("[DRY RUN] Would archive stale Notion page")
				deleted++
			} else {
				if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
					log.Warn().
						Err(err).
						Str("razao_social", name).
						Str("page_id", string(page.ID)).
						Msg("Failed to archive stale Notion page")
					continue
				}
				log.Info().
					Str("razao_social", name).
					Str("page_id", string(page.ID)).
					Msg("Archived stale Notion page")
				deleted++
			}
		}
	}

	// Create or update current summaries. Totals change every load, so
	// existing pages are updated rather than skipped.
	var created, updated int
	for _, agg := range aggregates {
		pageID := existingPages[agg.RazaoSocial]

		if dryRun {
			if pageID != "" {
				log.Info().
					Str("razao_social", agg.RazaoSocial).
					Str("page_id", pageID).
					Msg("[DRY RUN] Would update Notion page")
				updated++
			} else {
				log.Info().
					Str("razao_social", agg.RazaoSocial).
					Msg("[DRY RUN] Would create Notion page")
				created++
			}
			continue
		}

		props := AggregateToNotionProperties(agg)

		if pageID != "" {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("razao_social", agg.RazaoSocial).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				continue
			}
			updated++
		} else {
			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().
					Err(err).
					Str("razao_social", agg.RazaoSocial).
					Msg("Failed to create Notion page")
				continue
			}
			log.Info().
				Str("razao_social", agg.RazaoSocial).
				Str("page_id", string(page.ID)).
				Msg("Created Notion page")
			created++
		}
	}

	log.Info().
		Int("deleted", deleted).
		Int("created", created).
		Int("updated", updated).
		Int("total", len(aggregates)).
		Msg("Aggregate sync completed")

	return nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// extractOperatorName extracts the operator name from a Notion page's title.
// Returns empty string if not found.
func extractOperatorName(page notionapi.Page) string {
	if prop, ok := page.Properties["Operadora"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
